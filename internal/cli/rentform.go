// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/ui/styles"
)

// promptRentForm collects the rent agreement fields interactively.
// Date defaults to today when left blank.
func (r *REPL) promptRentForm() (gateway.RentAgreementRequest, error) {
	var req gateway.RentAgreementRequest

	fields := []struct {
		label    string
		dest     *string
		required bool
	}{
		{"Landlord name", &req.Landlord, true},
		{"Tenant name", &req.Tenant, true},
		{"Monthly rent (INR)", &req.Rent, true},
		{"Property address", &req.Address, true},
		{"Agreement date (YYYY-MM-DD, blank = today)", &req.Date, false},
	}

	for _, f := range fields {
		value, err := r.input.ReadInput(styles.Info.Render(f.label + ": "))
		if err != nil {
			return req, fmt.Errorf("form cancelled")
		}
		value = strings.TrimSpace(value)
		if value == "" && f.required {
			return req, fmt.Errorf("%s is required", f.label)
		}
		*f.dest = value
	}

	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}
	return req, nil
}
