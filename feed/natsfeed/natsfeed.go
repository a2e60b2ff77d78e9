// Package natsfeed carries ship inserts over NATS subjects as JSON.
package natsfeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/model"
)

// DefaultSubject carries one JSON-encoded ship per message.
const DefaultSubject = "ships.inserted"

// Subscriber implements feed.Subscriber on a NATS subject.
type Subscriber struct {
	conn    *nats.Conn
	subject string
	log     logging.Logger
}

// NewSubscriber listens on subject, or DefaultSubject when empty.
func NewSubscriber(conn *nats.Conn, subject string, log logging.Logger) *Subscriber {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Subscriber{conn: conn, subject: subject, log: log}
}

// Name implements feed.Named.
func (s *Subscriber) Name() string { return "nats" }

// Subscribe delivers decoded ships until ctx ends (nil) or the connection
// closes (feed.ErrFeedClosed). Undecodable messages are logged and dropped.
func (s *Subscriber) Subscribe(ctx context.Context, onInsert feed.InsertFunc) error {
	if s.conn == nil || s.conn.IsClosed() {
		return feed.ErrFeedClosed
	}
	closed := s.conn.StatusChanged(nats.CLOSED)
	defer s.conn.RemoveStatusListener(closed)

	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		ship, err := feed.DecodeShip(msg.Data)
		if err != nil {
			s.log.Warn(ctx, "nats ship message not understood",
				logging.String("subject", msg.Subject), logging.Err(err))
			return
		}
		onInsert(ship)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
			s.log.Debug(ctx, "nats unsubscribe failed", logging.Err(err))
		}
	}()
	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.log.Info(ctx, "nats subscribed", logging.String("subject", s.subject))

	select {
	case <-ctx.Done():
		return nil
	case <-closed:
		return feed.ErrFeedClosed
	}
}

// Publisher announces inserted ships on a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher publishes to subject, or DefaultSubject when empty.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Publish sends one ship.
func (p *Publisher) Publish(ctx context.Context, ship model.Ship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := feed.EncodeShip(ship)
	if err != nil {
		return fmt.Errorf("encode ship %s: %w", ship.ID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish ship %s: %w", ship.ID, err)
	}
	return nil
}

// Relay republishes every insert from src onto the publisher's subject, so
// one upstream subscription can serve many engine hosts. It returns when
// src's subscription ends.
func Relay(ctx context.Context, src feed.Subscriber, pub *Publisher, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	return src.Subscribe(ctx, func(ship model.Ship) {
		if err := pub.Publish(ctx, ship); err != nil {
			log.Warn(ctx, "relay publish failed", logging.String("ship_id", ship.ID), logging.Err(err))
		}
	})
}
