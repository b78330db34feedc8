package flags

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/slipup/internal/observability"
)

// UsageEvent records one evaluation.
type UsageEvent struct {
	FlagKey    Key       `json:"flag_key"`
	Value      any       `json:"value"`
	Platform   string    `json:"platform"`
	UserID     string    `json:"user_id,omitempty"`
	Source     Source    `json:"source"`
	Reason     Reason    `json:"reason"`
	InstanceID string    `json:"instance_id"`
	Time       time.Time `json:"time"`
}

// UsageCallback consumes usage events. Errors and panics are logged and counted, never returned.
//
// Callbacks run on the dispatcher goroutine, which Destroy waits for. A callback
// that wants to tear the resolver down must call Destroy from another goroutine
// (go r.Destroy()); calling it inline blocks forever.
type UsageCallback func(UsageEvent) error

// dispatcher hands events to the callback on its own goroutine so evaluation
// never waits on it. A full buffer drops the event.
type dispatcher struct {
	events   chan UsageEvent
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	callback UsageCallback
	logger   *slog.Logger
}

func newDispatcher(cb UsageCallback, buffer int, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		events:   make(chan UsageEvent, buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		callback: cb,
		logger:   logger,
	}
	go d.run()
	return d
}

func (d *dispatcher) submit(ev UsageEvent) {
	select {
	case <-d.quit:
		return
	default:
	}

	select {
	case d.events <- ev:
	default:
		observability.ResolverUsageDropped.Inc()
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.quit:
			d.drain()
			return
		}
	}
}

// drain delivers whatever was queued before stop.
func (d *dispatcher) drain() {
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *dispatcher) deliver(ev UsageEvent) {
	defer func() {
		if p := recover(); p != nil {
			d.fail(ev, fmt.Errorf("%w: panic: %v", ErrCallbackFailure, p))
		}
	}()

	if err := d.callback(ev); err != nil {
		d.fail(ev, fmt.Errorf("%w: %w", ErrCallbackFailure, err))
	}
}

func (d *dispatcher) fail(ev UsageEvent, err error) {
	observability.ResolverUsageCallbackFailures.Inc()
	d.logger.Debug("usage callback failed",
		slog.String("flag_key", string(ev.FlagKey)),
		slog.String("error", err.Error()),
	)
}

// stop waits for queued events to be delivered. Safe to call more than once,
// but never from the callback itself.
func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.quit) })
	<-d.done
}
