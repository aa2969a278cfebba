package devotional

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Record is the cached content for one day.
type Record struct {
	Text       string `json:"text"`
	Reference  string `json:"reference"`
	Enrichment string `json:"enrichment,omitempty"`
}

// HasEnrichment reports whether the derived commentary has been attached.
func (r *Record) HasEnrichment() bool {
	return r != nil && r.Enrichment != ""
}

// Clone returns a copy that can be mutated independently.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func (r *Record) encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(data), nil
}

func decodeRecord(raw string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if r.Text == "" || r.Reference == "" {
		return nil, errors.New("decode record: missing text or reference")
	}
	return &r, nil
}
