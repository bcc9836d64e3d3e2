package quoll

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func collectEvents(t *testing.T, sink *ChannelSink, want int) []Event {
	t.Helper()

	out := make([]Event, 0, want)
	timeout := time.After(2 * time.Second)
	for len(out) < want {
		select {
		case event := <-sink.Events():
			out = append(out, event)
		case <-timeout:
			t.Fatalf("timed out after %d of %d events", len(out), want)
		}
	}
	return out
}

func TestLifecycleEventsDelivered(t *testing.T) {
	ctx := context.Background()
	sink := NewChannelSink(16)

	db, err := New().
		InMemory().
		WithEventsEnabled(true).
		WithEventSink(sink).
		WithLogger(testLogger()).
		Build(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := db.GetCollection(ctx, "users"); err != nil {
		t.Fatalf("open collection: %v", err)
	}
	if err := db.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := db.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := collectEvents(t, sink, 4)
	wantKinds := []string{EventDatabaseOpened, EventCollectionOpened, EventCommit, EventDatabaseClosed}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Fatalf("event %d kind = %q, want %q", i, events[i].Kind, want)
		}
		if !events[i].Success {
			t.Fatalf("event %d reported failure: %+v", i, events[i])
		}
	}
	if events[1].Name != "users" {
		t.Fatalf("collection event name = %q, want users", events[1].Name)
	}
}

func TestEventsDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close(ctx)

	if db.EventsDropped() != 0 {
		t.Fatalf("disabled dispatcher reported drops")
	}
	// Emitting through a nil dispatcher must be a no-op.
	if _, err := db.GetCollection(ctx, "users"); err != nil {
		t.Fatalf("open collection: %v", err)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ Event) {
	<-s.release
}

func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newEventDispatcher(EventConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	// The worker blocks in the sink on the first delivery and the buffer
	// holds one more event, so at most two of the ten get through.
	for i := 0; i < 10; i++ {
		d.Emit(ctx, Event{Kind: EventCommit})
	}

	if d.Dropped() < 8 {
		t.Fatalf("dropped = %d, want >= 8", d.Dropped())
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := NewChannelSink(32)
	d := newEventDispatcher(EventConfig{Enabled: true, BufferSize: 32}, sink)

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		d.Emit(ctx, Event{Kind: EventCommit})
	}
	d.Close()

	collectEvents(t, sink, 8)

	// Emit after close is a no-op.
	d.Emit(ctx, Event{Kind: EventCommit})
	select {
	case event := <-sink.Events():
		t.Fatalf("event delivered after close: %+v", event)
	default:
	}
}

func TestDispatcherDisabled(t *testing.T) {
	if d := newEventDispatcher(EventConfig{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatalf("disabled config produced a dispatcher")
	}

	// A nil dispatcher accepts every call.
	var d *eventDispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher reported drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{Kind: EventCommit, Success: true})

	var decoded Event
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode emitted event: %v", err)
	}
	if decoded.Kind != EventCommit || !decoded.Success {
		t.Fatalf("decoded event = %+v", decoded)
	}
}
