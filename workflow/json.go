package workflow

import (
	"encoding/json"
	"fmt"
)

// Retry policy defaults applied when a field is absent from the JSON
// document. An explicit zero MaxAttempts is honored (it disables retries).
const (
	DefaultIntervalSeconds = 1.0
	DefaultMaxAttempts     = 3
	DefaultBackoffRate     = 2.0
)

// DecodeDefinition parses a workflow definition from its JSON document
// form. Retry policy defaults are applied during decoding; the result is
// not yet validated (see Validate).
func DecodeDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return &def, nil
}

// EncodeDefinition renders a definition back to its JSON document form.
func EncodeDefinition(def *Definition) ([]byte, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("workflow: encode definition %q: %w", def.Name, err)
	}
	return data, nil
}

// UnmarshalJSON applies the documented defaults for absent fields.
// Pointer fields on the alias distinguish "absent" from an explicit zero.
func (p *RetryPolicy) UnmarshalJSON(data []byte) error {
	var raw struct {
		ErrorEquals     []string `json:"ErrorEquals"`
		IntervalSeconds *float64 `json:"IntervalSeconds"`
		MaxAttempts     *int     `json:"MaxAttempts"`
		BackoffRate     *float64 `json:"BackoffRate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.ErrorEquals = raw.ErrorEquals

	p.IntervalSeconds = DefaultIntervalSeconds
	if raw.IntervalSeconds != nil {
		p.IntervalSeconds = *raw.IntervalSeconds
	}

	p.MaxAttempts = DefaultMaxAttempts
	if raw.MaxAttempts != nil {
		p.MaxAttempts = *raw.MaxAttempts
	}

	p.BackoffRate = DefaultBackoffRate
	if raw.BackoffRate != nil {
		p.BackoffRate = *raw.BackoffRate
	}

	return nil
}
