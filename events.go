package quoll

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Lifecycle event kinds emitted by a database session.
const (
	EventDatabaseOpened   = "database_opened"
	EventCollectionOpened = "collection_opened"
	EventRepositoryOpened = "repository_opened"
	EventCommit           = "commit"
	EventCompact          = "compact"
	EventDatabaseClosed   = "database_closed"
	EventDatabaseAborted  = "database_aborted"
	EventUserValidated    = "user_validated"
)

// Event describes one observable lifecycle transition.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	Name      string            `json:"name,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EventSink receives lifecycle events from the dispatcher. Emit must not
// block indefinitely; slow sinks cause drops or backpressure depending on
// EventConfig.DropIfFull.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events into a buffered channel for consumption by
// test code or external pipelines.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per event, newline-delimited.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
