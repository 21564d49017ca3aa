package toolflow

import (
	"context"
	"time"
)

// EventKind identifies a dispatch lifecycle event.
type EventKind string

const (
	EventDispatchStarted  EventKind = "dispatch.started"
	EventDispatchFinished EventKind = "dispatch.finished"
	EventDispatchFailed   EventKind = "dispatch.failed"
	EventStepStarted      EventKind = "step.started"
	EventStepFinished     EventKind = "step.finished"
	EventStepFailed       EventKind = "step.failed"
	EventStepSkipped      EventKind = "step.skipped"
)

// Event is a point-in-time observation of a dispatch or pipeline step.
// Observability handlers consume the stream without touching the dispatch
// path itself.
type Event struct {
	Kind       EventKind `json:"kind"`
	DispatchID string    `json:"dispatch_id,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Time       time.Time `json:"time"`

	// Elapsed is set on finished/failed events.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// Payload carries event-specific detail such as error messages.
	Payload Response `json:"payload,omitempty"`
}

// NewEvent creates an event of the given kind stamped with the current time.
func NewEvent(kind EventKind) Event {
	return Event{Kind: kind, Time: time.Now()}
}

// WithDispatchID sets the dispatch correlation ID.
func (e Event) WithDispatchID(id string) Event {
	e.DispatchID = id
	return e
}

// WithTool sets the tool name.
func (e Event) WithTool(tool string) Event {
	e.Tool = tool
	return e
}

// WithElapsed sets the elapsed duration.
func (e Event) WithElapsed(d time.Duration) Event {
	e.Elapsed = d
	return e
}

// WithPayload sets the event payload.
func (e Event) WithPayload(p Response) Event {
	e.Payload = p
	return e
}

// EventEmitter delivers an event to interested handlers. Emission must not
// block dispatch for long; slow consumers should buffer on their side.
type EventEmitter func(ctx context.Context, ev Event)

// EventHandler consumes dispatch events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event)
}

// MultiEventHandler fans one event out to several handlers in order.
type MultiEventHandler []EventHandler

func (m MultiEventHandler) HandleEvent(ctx context.Context, ev Event) {
	for _, h := range m {
		h.HandleEvent(ctx, ev)
	}
}

// ChannelEventHandler forwards events into a channel, dropping them when the
// channel is full.
type ChannelEventHandler struct {
	ch chan Event
}

// NewChannelEventHandler creates a handler with the given buffer size.
func NewChannelEventHandler(buffer int) *ChannelEventHandler {
	return &ChannelEventHandler{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the channel.
func (h *ChannelEventHandler) Events() <-chan Event {
	return h.ch
}

func (h *ChannelEventHandler) HandleEvent(_ context.Context, ev Event) {
	select {
	case h.ch <- ev:
	default:
	}
}

// EmitterFor adapts an EventHandler into an EventEmitter. A nil handler
// yields a nil emitter.
func EmitterFor(h EventHandler) EventEmitter {
	if h == nil {
		return nil
	}
	return h.HandleEvent
}

var (
	_ EventHandler = MultiEventHandler(nil)
	_ EventHandler = (*ChannelEventHandler)(nil)
)
