// Package capture wraps continuous speech recognition behind a restartable
// session facade. The recognizer engine emits incremental transcript events;
// Capture accumulates final deltas, relays interim text, and transparently
// restarts the engine after platform silence-timeouts up to a bounded retry
// count.
package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrEngineStopped is returned by [Remote.Push] after the engine has been
// stopped or aborted.
var ErrEngineStopped = errors.New("capture: engine stopped")

// Options configures a recognition run.
type Options struct {
	// Locale is the recognition language tag (e.g., "en-US").
	Locale string

	// Continuous keeps the recognizer listening across utterance boundaries.
	Continuous bool

	// InterimResults enables partial transcript events before a segment is
	// final.
	InterimResults bool
}

// Event is one recognition result. FinalDelta carries newly finalised text
// to be appended to the running transcript; Interim carries ephemeral partial
// text that will be replaced by later events.
type Event struct {
	FinalDelta string
	Interim    string
	IsFinal    bool
}

// Engine is a continuous speech recognition engine. Start returns a channel
// of recognition events; the channel closes when the engine ends the stream,
// which may happen spontaneously (platform silence-timeout) or after Stop or
// Abort.
type Engine interface {
	// Start begins recognition. Only one run may be active at a time.
	Start(ctx context.Context, opts Options) (<-chan Event, error)

	// Stop ends the run gracefully, flushing any pending final transcript
	// before closing the event channel.
	Stop() error

	// Abort ends the run immediately, discarding in-flight transcript.
	Abort() error
}

// Remote is a push-fed [Engine] for recognizers that run elsewhere (the
// browser's recognition facility relayed over the gateway). The transport
// feeds events in via [Remote.Push] and signals end-of-stream via
// [Remote.EndStream].
type Remote struct {
	mu      sync.Mutex
	events  chan Event
	active  bool
	stopped bool
}

var _ Engine = (*Remote)(nil)

// NewRemote creates an idle Remote engine.
func NewRemote() *Remote {
	return &Remote{}
}

func (r *Remote) Start(ctx context.Context, opts Options) (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil, errors.New("capture: remote engine already started")
	}
	r.events = make(chan Event, 32)
	r.active = true
	r.stopped = false
	return r.events, nil
}

// Push delivers one recognition event from the transport. Events pushed when
// no run is active are dropped with [ErrEngineStopped].
func (r *Remote) Push(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || r.stopped {
		return ErrEngineStopped
	}
	select {
	case r.events <- ev:
		return nil
	default:
	}
	// Buffer full: the consumer is not keeping up. Interim-only events are
	// ephemeral and droppable. Finalised text must survive, so fold the
	// oldest queued event into this one rather than blocking — a blocking
	// send here holds r.mu, and the consumer callback may re-enter
	// Stop/Abort, which also needs r.mu.
	if !ev.IsFinal {
		return nil
	}
	select {
	case old := <-r.events:
		if old.FinalDelta != "" {
			if ev.FinalDelta == "" {
				ev.FinalDelta = old.FinalDelta
			} else {
				ev.FinalDelta = old.FinalDelta + " " + ev.FinalDelta
			}
		}
	default:
	}
	select {
	case r.events <- ev:
	default:
	}
	return nil
}

// EndStream signals a spontaneous end-of-stream from the remote recognizer
// (e.g., a browser silence-timeout). Capture treats this as a restart
// trigger.
func (r *Remote) EndStream() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endLocked()
}

func (r *Remote) endLocked() {
	if r.active {
		close(r.events)
		r.active = false
	}
}

func (r *Remote) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.endLocked()
	return nil
}

func (r *Remote) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.endLocked()
	return nil
}
