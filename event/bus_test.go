package event_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/event"
)

func testBus(opts ...event.BusOption) *event.Bus {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return event.NewBus(append([]event.BusOption{event.WithLogger(logger)}, opts...)...)
}

func receiveOne(t *testing.T, sub *event.Subscription) event.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
	return event.Envelope{}
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	sub := bus.Subscribe(event.TopicExecutionStarted)
	defer sub.Cancel()

	payload := event.ExecutionEvent{
		ExecutionID: "exec-1",
		Workflow:    "natural-disaster-response",
		Status:      "RUNNING",
	}
	env, err := bus.Publish(context.Background(), event.TopicExecutionStarted, payload)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if env.Topic != event.TopicExecutionStarted {
		t.Errorf("Topic = %q, want %q", env.Topic, event.TopicExecutionStarted)
	}
	if env.ID.String() == "" {
		t.Error("expected envelope ID to be set")
	}

	got := receiveOne(t, sub)
	if got.ID != env.ID {
		t.Errorf("received ID = %v, want %v", got.ID, env.ID)
	}

	var decoded event.ExecutionEvent
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Workflow != "natural-disaster-response" {
		t.Errorf("Workflow = %q, want %q", decoded.Workflow, "natural-disaster-response")
	}
}

func TestBus_TopicFiltering(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	failed := bus.Subscribe(event.TopicExecutionFailed)
	defer failed.Cancel()
	all := bus.Subscribe()
	defer all.Cancel()

	if _, err := bus.Publish(context.Background(), event.TopicExecutionSucceeded, event.ExecutionEvent{ExecutionID: "exec-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := bus.Publish(context.Background(), event.TopicExecutionFailed, event.ExecutionEvent{ExecutionID: "exec-2"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// The filtered subscriber only sees the failure.
	got := receiveOne(t, failed)
	if got.Topic != event.TopicExecutionFailed {
		t.Errorf("Topic = %q, want %q", got.Topic, event.TopicExecutionFailed)
	}
	select {
	case extra := <-failed.C:
		t.Errorf("unexpected extra envelope on topic %q", extra.Topic)
	default:
	}

	// The catch-all subscriber sees both, in order.
	first := receiveOne(t, all)
	second := receiveOne(t, all)
	if first.Topic != event.TopicExecutionSucceeded || second.Topic != event.TopicExecutionFailed {
		t.Errorf("topics = %q, %q, want %q, %q",
			first.Topic, second.Topic, event.TopicExecutionSucceeded, event.TopicExecutionFailed)
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	first := bus.Subscribe(event.TopicEmergencyReported)
	defer first.Cancel()
	second := bus.Subscribe(event.TopicEmergencyReported)
	defer second.Cancel()

	env, err := bus.Publish(context.Background(), event.TopicEmergencyReported, event.EmergencyEvent{
		EmergencyID: "em-1",
		Type:        "NATURAL_DISASTER",
		Severity:    "CRITICAL",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, sub := range []*event.Subscription{first, second} {
		got := receiveOne(t, sub)
		if got.ID != env.ID {
			t.Errorf("received ID = %v, want %v", got.ID, env.ID)
		}
	}
}

func TestBus_DropsOnFullBuffer(t *testing.T) {
	bus := testBus(event.WithBuffer(1))
	defer bus.Close()

	sub := bus.Subscribe(event.TopicExecutionStarted)
	defer sub.Cancel()

	// Second publish overflows the buffer and is dropped rather than
	// blocking the publisher.
	if _, err := bus.Publish(context.Background(), event.TopicExecutionStarted, event.ExecutionEvent{ExecutionID: "kept"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := bus.Publish(context.Background(), event.TopicExecutionStarted, event.ExecutionEvent{ExecutionID: "dropped"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := receiveOne(t, sub)
	var decoded event.ExecutionEvent
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.ExecutionID != "kept" {
		t.Errorf("ExecutionID = %q, want %q", decoded.ExecutionID, "kept")
	}
	select {
	case <-sub.C:
		t.Error("expected overflow envelope to be dropped")
	default:
	}
}

func TestBus_Cancel(t *testing.T) {
	bus := testBus()
	defer bus.Close()

	sub := bus.Subscribe(event.TopicExecutionStarted)
	sub.Cancel()

	if _, err := bus.Publish(context.Background(), event.TopicExecutionStarted, event.ExecutionEvent{ExecutionID: "exec-1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, ok := <-sub.C; ok {
		t.Error("expected channel closed after Cancel")
	}

	// Cancel is idempotent.
	sub.Cancel()
}

func TestBus_Close(t *testing.T) {
	bus := testBus()

	sub := bus.Subscribe()
	bus.Close()

	if _, ok := <-sub.C; ok {
		t.Error("expected channel closed after bus Close")
	}

	// Publish after Close is a no-op but still returns the envelope.
	env, err := bus.Publish(context.Background(), event.TopicExecutionStarted, event.ExecutionEvent{ExecutionID: "exec-1"})
	if err != nil {
		t.Fatalf("Publish after Close: %v", err)
	}
	if env.Topic != event.TopicExecutionStarted {
		t.Errorf("Topic = %q, want %q", env.Topic, event.TopicExecutionStarted)
	}

	late := bus.Subscribe()
	if _, ok := <-late.C; ok {
		t.Error("expected subscription on closed bus to be closed immediately")
	}
}
