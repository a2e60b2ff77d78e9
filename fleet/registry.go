// Package fleet holds the live ship registry: the bulk-loaded ships plus
// every ship inserted since, each exactly once, in arrival order.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/model"
)

// ErrClosed is returned by operations on a closed registry.
var ErrClosed = errors.New("registry closed")

// DefaultInboxSize bounds the insert channel before overflow kicks in.
const DefaultInboxSize = 1024

// State is the registry lifecycle stage.
type State int

const (
	StateUninitialized State = iota
	StatePopulated
	StateSubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePopulated:
		return "populated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// InsertRecorder counts insert events per feed.
type InsertRecorder interface {
	IncFeedInserts(feed string)
}

// Registry is safe for concurrent use. Inserts may arrive on any goroutine;
// they are queued on a buffered channel and only become visible when the
// frame goroutine calls Drain.
type Registry struct {
	log     logging.Logger
	metrics InsertRecorder

	mu       sync.RWMutex
	ships    []model.Ship
	index    map[string]int
	state    State
	overflow []model.Ship
	loaded   []model.Ship
	cancel   context.CancelFunc

	inbox chan model.Ship
}

// Option customises a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics attaches an insert counter.
func WithMetrics(m InsertRecorder) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithInboxSize sets the insert channel capacity.
func WithInboxSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.inbox = make(chan model.Ship, n)
		}
	}
}

// New returns an empty, uninitialized registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:   logging.Noop(),
		index: make(map[string]int),
		inbox: make(chan model.Ship, DefaultInboxSize),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// InitialLoad performs the one-shot bulk read. A failed read is logged and
// returned, and the registry still moves to StatePopulated (empty) so the
// frame loop can run.
func (r *Registry) InitialLoad(ctx context.Context, reader feed.BulkReader) (err error) {
	if r.State() == StateClosed {
		return ErrClosed
	}
	ctx, span := observability.StartSpan(ctx, "fleet.InitialLoad", "feed", feed.NameOf(reader))
	defer func() { observability.EndSpan(span, err) }()

	ships, err := reader.ReadAll(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return ErrClosed
	}
	if r.state == StateUninitialized {
		r.state = StatePopulated
	}
	if err != nil {
		r.log.Error(ctx, "initial ship load failed", logging.Err(err))
		return fmt.Errorf("initial load: %w", err)
	}
	added := r.addLocked(ships)
	r.loaded = append(r.loaded, added...)
	r.log.Info(ctx, "initial ship load complete",
		logging.Int("received", len(ships)),
		logging.Int("added", len(added)),
	)
	return nil
}

// Subscribe runs the push subscription until ctx ends, Close is called, or
// the feed drops. Delivery errors are logged and swallowed; the
// subscription is not retried.
func (r *Registry) Subscribe(ctx context.Context, sub feed.Subscriber) error {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = StateSubscribed
	r.mu.Unlock()
	defer cancel()

	name := feed.NameOf(sub)
	err := sub.Subscribe(ctx, func(s model.Ship) {
		if r.metrics != nil {
			r.metrics.IncFeedInserts(name)
		}
		r.enqueue(s)
	})
	if err != nil && ctx.Err() == nil {
		r.log.Warn(ctx, "ship subscription ended", logging.String("feed", name), logging.Err(err))
	}
	return nil
}

// Insert queues a ship as if it had arrived from a feed.
func (r *Registry) Insert(s model.Ship) {
	r.enqueue(s)
}

func (r *Registry) enqueue(s model.Ship) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return
	}
	// Once the channel has overflowed, later inserts queue behind the
	// overflow so arrival order holds.
	if len(r.overflow) == 0 {
		select {
		case r.inbox <- s:
			return
		default:
		}
	}
	r.overflow = append(r.overflow, s)
}

// Drain applies every queued insert and returns the ships that were new,
// in arrival order. Ships from the initial load that the frame goroutine has
// not seen yet come first. It never blocks.
func (r *Registry) Drain() []model.Ship {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return nil
	}

	var queued []model.Ship
drain:
	for {
		select {
		case s := <-r.inbox:
			queued = append(queued, s)
		default:
			break drain
		}
	}
	if len(r.overflow) > 0 {
		queued = append(queued, r.overflow...)
		r.overflow = nil
	}
	added := r.addLocked(queued)
	if len(r.loaded) > 0 {
		added = append(r.loaded, added...)
		r.loaded = nil
	}
	return added
}

func (r *Registry) addLocked(ships []model.Ship) []model.Ship {
	var added []model.Ship
	for _, s := range ships {
		if s.ID == "" {
			r.log.Warn(context.Background(), "ignoring ship without id", logging.String("name", s.Name))
			continue
		}
		if _, dup := r.index[s.ID]; dup {
			continue
		}
		r.index[s.ID] = len(r.ships)
		r.ships = append(r.ships, s)
		added = append(added, s)
	}
	return added
}

// All returns a snapshot of every ship in arrival order.
func (r *Registry) All() []model.Ship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Ship(nil), r.ships...)
}

// Get looks up a ship by id.
func (r *Registry) Get(id string) (model.Ship, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return model.Ship{}, false
	}
	return r.ships[i], true
}

// Len returns the number of ships applied so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ships)
}

// State reports the lifecycle stage.
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Close stops the subscription and discards queued inserts. Ships already
// applied remain readable.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateClosed {
		return
	}
	r.state = StateClosed
	r.overflow = nil
	if r.cancel != nil {
		r.cancel()
	}
}
