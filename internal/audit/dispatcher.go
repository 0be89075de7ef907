package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSinkTimeout bounds one Sink.Emit call when Config.SinkTimeout is zero.
const DefaultSinkTimeout = 5 * time.Second

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// SinkTimeout is the deadline handed to each Sink.Emit call.
	SinkTimeout time.Duration
}

// Dispatcher relays events to a Sink from a single goroutine. The channel is
// closed under mu, so Emit never races a send against Close.
type Dispatcher struct {
	sink        Sink
	dropIfFull  bool
	sinkTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}

	dropped atomic.Uint64
	panics  atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled;
// every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultSinkTimeout
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:        sink,
		dropIfFull:  cfg.DropIfFull,
		sinkTimeout: cfg.SinkTimeout,
		ch:          make(chan Event, cfg.BufferSize),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.ch {
		d.deliver(event)
	}
}

// deliver isolates the loop from a misbehaving sink.
func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if recover() != nil {
			d.panics.Add(1)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
	defer cancel()
	d.sink.Emit(ctx, event)
}

// Emit queues event. Events emitted after Close are discarded. Without
// DropIfFull, Emit blocks until there is room or ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until the buffer is drained.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}

// Dropped counts events discarded because the buffer was full or the
// caller's context ended first.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics counts Emit calls that panicked inside the sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
