// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kavach holds the emergency legal-protection playbook: a fixed
// catalogue of confrontation scenarios, each with de-escalation steps
// and a spoken assertion script.
package kavach

import "errors"

// ErrScenarioNotFound is returned when no scenario has the given ID.
var ErrScenarioNotFound = errors.New("kavach: scenario not found")

// Step is one instruction within a scenario.
type Step struct {
	Label string
	Text  string
}

// Scenario is one emergency situation and its playbook.
type Scenario struct {
	ID          string
	Title       string
	Description string
	Steps       []Step

	// AudioScript is the assertion spoken aloud on the user's behalf,
	// phrased to cite the relevant statute.
	AudioScript string
}

// Speaker voices a script aloud. Implementations wrap a platform
// text-to-speech engine; tests substitute doubles.
type Speaker interface {
	// Speak voices text in the given BCP 47 language. Rate and pitch
	// are fractions of the engine default (1.0 = unchanged).
	Speak(text, lang string, rate, pitch float64) error
}

// Spoken delivery tuned for authority: slightly slow, lowered pitch.
const (
	speechLang  = "hi-IN"
	speechRate  = 0.9
	speechPitch = 0.8
)

// Catalogue returns the fixed scenario playbook.
func Catalogue() []Scenario {
	return []Scenario{
		{
			ID:          "police",
			Title:       "Police Stopped Me",
			Description: "If traffic police takes your keys or demands a bribe.",
			Steps: []Step{
				{Label: "Don't Panic", Text: "Shaant rahiye. Gadi side mein lagayein."},
				{Label: "Key Snatching?", Text: "Sir, Motor Vehicle Act ke tahat aapko meri gadi ki chaabi nikalne ka adhikar nahi hai. (Video record karein)."},
				{Label: "Challan Amount?", Text: "Sir, mujhe official e-challan machine se raseed dijiye. Cash dene se mana karein."},
			},
			AudioScript: "Sir, Motor Vehicle Act ke tahat, kisi bhi police adhikari ko gadi ki chaabi nikalne ka adhikar nahi hai. Kripya meri chaabi wapas karein aur niyam purvak challan kaatein.",
		},
		{
			ID:          "landlord",
			Title:       "Landlord Issues",
			Description: "Forced eviction or entering without notice.",
			Steps: []Step{
				{Label: "Privacy Right", Text: "Aap meri permission ke bina mere ghar mein nahi aa sakte."},
				{Label: "Eviction Threat?", Text: "Bina court order aur 1 mahine ke notice ke aap mujhe nahi nikal sakte."},
				{Label: "Security Deposit", Text: "Deposit katne ka valid reason aur bill dikhana padega."},
			},
			AudioScript: "Sir, Rent Control Act ke anusar, aap bina 24 ghante ke notice ke mere ghar mein nahi aa sakte. Agar aapne zabardasti ki, toh mujhe police complaint karni padegi.",
		},
		{
			ID:          "accident",
			Title:       "Road Accident",
			Description: "Someone hit your car or you hit someone.",
			Steps: []Step{
				{Label: "Evidence", Text: "Sabse pehle gadi aur number plate ka photo lein."},
				{Label: "No Fight", Text: "Behes na karein. Seedha insurance claim ke liye bolein."},
				{Label: "Injured?", Text: "Agar koi ghayal hai, toh turant hospital le jayein (Good Samaritan Law aapko protect karta hai)."},
			},
			AudioScript: "Dekhiye, hum sadak par tamasha nahi karenge. Maine gadi ka number note kar liya hai. Hum police station jakar baat karenge. Kripya shanti banaye rakhein.",
		},
		{
			ID:          "scam",
			Title:       "Online Scam / Fraud",
			Description: "Bank money deducted or OTP fraud.",
			Steps: []Step{
				{Label: "Call 1930", Text: "Turant 1930 par call karein (Cyber Crime Helpline)."},
				{Label: "Block Card", Text: "Apne bank app se card freeze karein."},
				{Label: "Don't Delete", Text: "SMS ya Transaction ID delete na karein."},
			},
			AudioScript: "Main abhi Cyber Crime Portal par complaint register kar raha hun. Agar yeh fraud hai, toh aapka account trace ho jayega.",
		},
	}
}

// Find returns the scenario with the given ID.
func Find(id string) (*Scenario, error) {
	for _, s := range Catalogue() {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, ErrScenarioNotFound
}

// PlayWarning voices a scenario's assertion script through the speaker.
func PlayWarning(sp Speaker, scenario *Scenario) error {
	return sp.Speak(scenario.AudioScript, speechLang, speechRate, speechPitch)
}
