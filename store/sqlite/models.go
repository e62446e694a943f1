package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Timestamps are stored as RFC 3339 text in UTC so they collate
// chronologically and survive round trips without driver-specific
// time handling.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullableTime renders an optional timestamp as a bind argument, mapping
// nil to SQL NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func encodeHistory(events []workflow.Event) ([]byte, error) {
	if len(events) == 0 {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return raw, nil
}

func decodeHistory(raw []byte) ([]workflow.Event, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var events []workflow.Event
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events, nil
}

func encodeStrings(values []string) ([]byte, error) {
	if len(values) == 0 {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode string list: %w", err)
	}
	return raw, nil
}

func decodeStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}
