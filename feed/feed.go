// Package feed defines how ship records reach the engine: a one-shot bulk
// read at start-up and a push subscription for inserts.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/goccy/go-json"

	"github.com/signalsfoundry/starfleet/model"
)

// ErrFeedClosed is returned by a subscription whose underlying connection
// went away.
var ErrFeedClosed = errors.New("feed closed")

// BulkReader returns every ship currently stored.
type BulkReader interface {
	ReadAll(ctx context.Context) ([]model.Ship, error)
}

// InsertFunc receives one inserted ship. It may be called from any
// goroutine and must not block for long.
type InsertFunc func(model.Ship)

// Subscriber delivers insert events to onInsert until ctx ends (nil error)
// or the feed drops (non-nil error). It does not reconnect.
type Subscriber interface {
	Subscribe(ctx context.Context, onInsert InsertFunc) error
}

// Named is implemented by feeds that report a metrics label.
type Named interface {
	Name() string
}

// NameOf returns a feed's label, or "unknown".
func NameOf(v any) string {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// DecodeShip parses one ship record as stored by the data store.
func DecodeShip(data []byte) (model.Ship, error) {
	var s model.Ship
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Ship{}, err
	}
	return s, nil
}

// EncodeShip serialises a ship record.
func EncodeShip(s model.Ship) ([]byte, error) {
	return json.Marshal(s)
}

// Memory is an in-process feed used for demos and tests. Ships passed to
// Insert are delivered to every active subscription.
type Memory struct {
	mu      sync.Mutex
	initial []model.Ship
	subs    map[int]InsertFunc
	nextID  int
	closed  bool
	closeCh chan struct{}
}

// NewMemory creates a feed whose bulk read returns initial.
func NewMemory(initial ...model.Ship) *Memory {
	return &Memory{
		initial: append([]model.Ship(nil), initial...),
		subs:    make(map[int]InsertFunc),
		closeCh: make(chan struct{}),
	}
}

// Name implements Named.
func (m *Memory) Name() string { return "memory" }

// ReadAll returns the initial ships.
func (m *Memory) ReadAll(ctx context.Context) ([]model.Ship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Ship(nil), m.initial...), nil
}

// Subscribe blocks until ctx ends or the feed is closed.
func (m *Memory) Subscribe(ctx context.Context, onInsert InsertFunc) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrFeedClosed
	}
	id := m.nextID
	m.nextID++
	m.subs[id] = onInsert
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-m.closeCh:
		return ErrFeedClosed
	}
}

// Insert delivers s to all subscribers and returns how many received it.
func (m *Memory) Insert(s model.Ship) int {
	m.mu.Lock()
	subs := make([]InsertFunc, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
	return len(subs)
}

// Subscribers returns the number of active subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close ends every subscription with ErrFeedClosed.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.closeCh)
	}
}
