package retro

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ActionItem struct {
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// SummaryDocument is the project-level retrospective summary.
type SummaryDocument struct {
	Title        string       `json:"title"`
	Overview     string       `json:"overview"`
	KeyThemes    string       `json:"key_themes"`
	Positives    string       `json:"positives"`
	Improvements string       `json:"improvements"`
	ActionItems  []ActionItem `json:"action_items"`
}

var summaryRequiredKeys = []string{"title", "overview", "key_themes", "positives", "improvements", "action_items"}

// DecodeSummaryDocument decodes raw JSON and checks every required key is
// present with the right type. Unknown keys are ignored.
func DecodeSummaryDocument(raw []byte) (SummaryDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return SummaryDocument{}, fmt.Errorf("summary is not a JSON object: %w", err)
	}
	for _, k := range summaryRequiredKeys {
		v, ok := fields[k]
		if !ok || string(v) == "null" {
			return SummaryDocument{}, fmt.Errorf("summary missing %q", k)
		}
	}
	var doc SummaryDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SummaryDocument{}, fmt.Errorf("summary has wrong field types: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return SummaryDocument{}, err
	}
	return doc, nil
}

// Validate checks the shape of a document built in memory.
func (d SummaryDocument) Validate() error {
	if d.ActionItems == nil {
		return fmt.Errorf("summary action_items required")
	}
	for i, it := range d.ActionItems {
		if strings.TrimSpace(it.Description) == "" {
			return fmt.Errorf("action_items[%d].description required", i)
		}
		if strings.TrimSpace(it.Priority) == "" {
			return fmt.Errorf("action_items[%d].priority required", i)
		}
	}
	return nil
}
