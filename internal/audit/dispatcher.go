package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls the asynchronous dispatcher.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		BufferSize: 256,
		DropIfFull: true,
	}
}

// Dispatcher forwards events to a sink from a single background goroutine so
// slow sinks never stall auth operations.
type Dispatcher struct {
	sink    Sink
	events  chan Event
	done    chan struct{}
	dropped atomic.Uint64

	dropIfFull bool
	enabled    bool

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if sink == nil {
		sink = NoOpSink{}
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	d := &Dispatcher{
		sink:       sink,
		events:     make(chan Event, cfg.BufferSize),
		done:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
		enabled:    cfg.Enabled,
	}
	if d.enabled {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.events:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is already buffered, then stop. The events
			// channel is never closed; a racing Emit lands harmlessly in
			// the buffer instead of panicking on a closed channel.
			for {
				select {
				case event := <-d.events:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues an event. When the buffer is full the event is either dropped
// (DropIfFull) or the call blocks until space frees up or ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || !d.enabled {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case <-d.done:
		d.dropped.Add(1)
		return
	default:
	}

	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.done:
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded since construction.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains the queue and stops the dispatcher goroutine.
func (d *Dispatcher) Close() {
	if d == nil || !d.enabled {
		return
	}
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}
