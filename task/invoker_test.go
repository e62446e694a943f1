package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/task"
)

func TestInvoker_DispatchesToHandler(t *testing.T) {
	r := task.NewRegistry()
	def := task.NewDefinition("echo", func(_ context.Context, in map[string]string) (map[string]string, error) {
		in["seen"] = "yes"
		return in, nil
	})
	if err := task.RegisterDefinition(r, def); err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}

	inv := task.NewInvoker(r)
	out, err := inv.Invoke(context.Background(), "echo", json.RawMessage(`{"a":"b"}`), 0)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if got["a"] != "b" || got["seen"] != "yes" {
		t.Errorf("output = %v, want input echoed with seen=yes", got)
	}
}

func TestInvoker_UnknownResource(t *testing.T) {
	inv := task.NewInvoker(task.NewRegistry())

	_, err := inv.Invoke(context.Background(), "missing", nil, 0)
	if !errors.Is(err, recovery.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
