package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrUnavailable is surfaced through OnUnavailable when the engine keeps
// dying and the restart budget is exhausted. Typed input remains possible for
// the caller; only speech capture is given up on.
var ErrUnavailable = errors.New("capture: recognition unavailable")

// Callback receives recognition events. finalDelta is newly finalised text
// to append to the running transcript; interim is ephemeral partial text.
type Callback func(finalDelta, interim string, isFinal bool)

// Config tunes a [Capture].
type Config struct {
	// MaxRestarts bounds automatic engine restarts per Start call.
	// Default: 4.
	MaxRestarts int

	// OnRestart, when set, is invoked after each automatic restart.
	OnRestart func(attempt int)

	// OnUnavailable, when set, is invoked once when the restart budget is
	// exhausted and capture gives up.
	OnUnavailable func(err error)
}

// Capture drives an [Engine] with transparent bounded restarts.
//
// Stop is graceful: events the engine flushes while closing are still
// delivered before Stop returns. Abort is immediate: no callbacks fire after
// Abort returns. Safe for concurrent use.
type Capture struct {
	engine Engine
	cfg    Config

	mu       sync.Mutex
	started  bool
	stopping bool
	gen      int
	restarts int
	opts     Options
	ctx      context.Context
	cb       Callback
	done     chan struct{}
}

// New creates a Capture around engine. Zero-value config fields get
// defaults.
func New(engine Engine, cfg Config) *Capture {
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = 4
	}
	return &Capture{engine: engine, cfg: cfg}
}

// Start begins recognition and delivers events to cb until Stop or Abort is
// called. Returns an error if already started or the engine fails to start.
func (c *Capture) Start(ctx context.Context, opts Options, cb Callback) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("capture: already started")
	}

	events, err := c.engine.Start(ctx, opts)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.started = true
	c.stopping = false
	c.gen++
	c.restarts = 0
	c.opts = opts
	c.ctx = ctx
	c.cb = cb
	c.done = make(chan struct{})
	gen := c.gen
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.consume(gen, events)
	}()
	return nil
}

// consume relays events for one engine run and handles spontaneous stream
// ends by restarting within the budget.
func (c *Capture) consume(gen int, events <-chan Event) {
	for ev := range events {
		c.mu.Lock()
		live := c.started && c.gen == gen
		cb := c.cb
		c.mu.Unlock()
		if !live {
			// Aborted or superseded while the event was in flight.
			return
		}
		cb(ev.FinalDelta, ev.Interim, ev.IsFinal)
	}

	// Stream ended.
	c.mu.Lock()
	if !c.started || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.stopping {
		// Graceful stop: flushed events are delivered, no restart.
		c.started = false
		c.mu.Unlock()
		return
	}

	if c.restarts >= c.cfg.MaxRestarts {
		c.started = false
		onUnavailable := c.cfg.OnUnavailable
		c.mu.Unlock()
		slog.Warn("capture restart budget exhausted, giving up",
			"restarts", c.cfg.MaxRestarts)
		if onUnavailable != nil {
			onUnavailable(ErrUnavailable)
		}
		return
	}

	c.restarts++
	attempt := c.restarts
	ctx, opts := c.ctx, c.opts
	c.mu.Unlock()

	newEvents, err := c.engine.Start(ctx, opts)

	c.mu.Lock()
	if !c.started || c.gen != gen || c.stopping {
		c.started = false
		c.mu.Unlock()
		if err == nil {
			c.engine.Stop()
		}
		return
	}
	if err != nil {
		c.started = false
		onUnavailable := c.cfg.OnUnavailable
		c.mu.Unlock()
		slog.Warn("capture restart failed", "attempt", attempt, "error", err)
		if onUnavailable != nil {
			onUnavailable(ErrUnavailable)
		}
		return
	}
	onRestart := c.cfg.OnRestart
	c.mu.Unlock()

	slog.Debug("capture engine restarted", "attempt", attempt)
	if onRestart != nil {
		onRestart(attempt)
	}
	c.consume(gen, newEvents)
}

// Stop ends capture gracefully. Final transcript the engine flushes while
// closing is still delivered; once Stop returns, no further callbacks fire.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	done := c.done
	c.mu.Unlock()

	err := c.engine.Stop()
	<-done
	return err
}

// Abort ends capture immediately, discarding in-flight transcript. The
// generation bump guarantees no queued event is delivered afterwards, so
// Abort is safe to call from inside a callback.
func (c *Capture) Abort() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.gen++
	c.mu.Unlock()

	return c.engine.Abort()
}

// Active reports whether capture is logically started.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
