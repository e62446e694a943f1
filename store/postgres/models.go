package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// encodeHistory renders execution history as a JSONB value, never NULL.
func encodeHistory(events []workflow.Event) (json.RawMessage, error) {
	if len(events) == 0 {
		return json.RawMessage("[]"), nil
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
