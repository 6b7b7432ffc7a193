// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package docgen saves generated legal documents to disk.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nyaysahayak/sahayak-tui/internal/gateway"
	"github.com/nyaysahayak/sahayak-tui/internal/util"
)

// ErrEmptyDocument is returned when the backend produced no bytes.
var ErrEmptyDocument = errors.New("docgen: backend returned an empty document")

// Generator drives document generation through the gateway and writes
// the results into an output directory.
type Generator struct {
	client *gateway.Client
	outDir string
}

// NewGenerator creates a generator writing into outDir. Empty outDir
// defaults to ~/.sahayak/documents/.
func NewGenerator(client *gateway.Client, outDir string) (*Generator, error) {
	if outDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		outDir = filepath.Join(home, ".sahayak", "documents")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	return &Generator{client: client, outDir: outDir}, nil
}

// LegalNotice generates a legal notice PDF from the dictated complaint
// and returns the saved file path.
func (g *Generator) LegalNotice(ctx context.Context, voiceInput string) (string, error) {
	blob, err := g.client.GenerateLegalNotice(ctx, voiceInput)
	if err != nil {
		return "", err
	}
	return g.save("legal_notice", ".pdf", blob)
}

// RentAgreement generates a rent agreement DOCX from the form fields
// and returns the saved file path.
func (g *Generator) RentAgreement(ctx context.Context, req gateway.RentAgreementRequest) (string, error) {
	blob, err := g.client.GenerateRentAgreement(ctx, req)
	if err != nil {
		return "", err
	}
	return g.save("rent_agreement", ".docx", blob)
}

// save writes a document blob with a timestamped name.
func (g *Generator) save(prefix, ext string, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", ErrEmptyDocument
	}

	name := fmt.Sprintf("%s_%s%s", prefix, time.Now().Format("20060102-150405"), ext)
	path := filepath.Join(g.outDir, name)

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, blob, 0644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return path, nil
}
