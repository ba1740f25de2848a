package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversToSink(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(DefaultConfig(), sink)
	defer d.Close()

	d.Emit(context.Background(), Event{
		EventType: "login_success",
		UserID:    "user-1",
		Success:   true,
	})

	select {
	case got := <-sink.Events():
		if got.EventType != "login_success" {
			t.Fatalf("event type = %q, want login_success", got.EventType)
		}
		if got.UserID != "user-1" {
			t.Fatalf("user id = %q, want user-1", got.UserID)
		}
		if got.Timestamp.IsZero() {
			t.Fatal("expected dispatcher to stamp the event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the sink")
	}
}

func TestDispatcherDisabledIsNoOp(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: false}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success"})

	select {
	case <-sink.Events():
		t.Fatal("disabled dispatcher should not forward events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	blocked := make(chan struct{})
	sink := sinkFunc(func(context.Context, Event) {
		<-blocked
	})
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the dispatcher goroutine, second fills the
	// buffer, the rest must be dropped.
	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(blocked)
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16, DropIfFull: false}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "logout", Success: true})
	}
	d.Close()

	delivered := 0
	for {
		select {
		case <-sink.Events():
			delivered++
		default:
			if delivered != 5 {
				t.Fatalf("delivered %d events after close, want 5", delivered)
			}
			return
		}
	}
}

func TestDispatcherEmitRacingCloseDoesNotPanic(t *testing.T) {
	sink := NewChannelSink(64)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	stop := make(chan struct{})
	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		for {
			select {
			case <-stop:
				return
			default:
				d.Emit(context.Background(), Event{EventType: "login_failure"})
			}
		}
	}()

	d.Close()
	close(stop)
	<-emitted

	// Emit after close is a no-op counted as a drop, never a panic.
	before := d.Dropped()
	d.Emit(context.Background(), Event{EventType: "login_failure"})
	if d.Dropped() != before+1 {
		t.Fatalf("dropped = %d, want %d", d.Dropped(), before+1)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		EventType: "rate_limited",
		UserID:    "user-2",
	})
	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC),
		EventType: "mfa_success",
		Success:   true,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.EventType != "rate_limited" {
		t.Fatalf("first event type = %q, want rate_limited", first.EventType)
	}
}

type sinkFunc func(context.Context, Event)

func (f sinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }
