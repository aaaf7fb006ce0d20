package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventGatewayEnabled  EventType = "gateway.enabled"
	EventGatewayDisabled EventType = "gateway.disabled"

	EventToolCallStarted   EventType = "tool.call.started"
	EventToolCallCompleted EventType = "tool.call.completed"

	EventConsoleStarted   EventType = "console.session.started"
	EventConsoleExited    EventType = "console.session.exited"
	EventConsoleCompleted EventType = "console.command.completed"

	EventFileCreated EventType = "file.created"
	EventFileEdited  EventType = "file.edited"

	EventDiagnosticsUpdated EventType = "diagnostics.updated"
)

// Event is a single gateway event, fanned out to observers on the
// streaming endpoint.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus is the publish/subscribe contract used across the gateway.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}
