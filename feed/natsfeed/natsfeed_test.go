package natsfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/model"
)

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := StartEmbedded("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbedded: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func connect(t *testing.T, srv *EmbeddedServer) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("nats.Connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func waitForSubscription(t *testing.T, nc *nats.Conn) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for nc.NumSubscriptions() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription never registered")
		}
		time.Sleep(time.Millisecond)
	}
	// Let the subscriber's flush reach the server.
	time.Sleep(50 * time.Millisecond)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	srv := startServer(t)
	subConn := connect(t, srv)
	pubConn := connect(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.Ship, 2)
	done := make(chan error, 1)
	sub := NewSubscriber(subConn, "", nil)
	go func() { done <- sub.Subscribe(ctx, func(s model.Ship) { got <- s }) }()
	waitForSubscription(t, subConn)

	pub := NewPublisher(pubConn, "")
	if err := pubConn.Publish(DefaultSubject, []byte("garbage")); err != nil {
		t.Fatalf("publish garbage: %v", err)
	}
	if err := pub.Publish(ctx, model.Ship{ID: "s1", SpaceshipID: "jet", OrbitRadius: model.Float(4.4)}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case s := <-got:
		if s.ID != "s1" || s.OrbitRadius == nil || *s.OrbitRadius != 4.4 {
			t.Fatalf("received ship: got %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for ship")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Subscribe after cancel: got %v, want nil", err)
	}
}

func TestSubscribeReportsClosedConnection(t *testing.T) {
	srv := startServer(t)
	nc := connect(t, srv)

	done := make(chan error, 1)
	go func() { done <- NewSubscriber(nc, "", nil).Subscribe(context.Background(), func(model.Ship) {}) }()
	time.Sleep(50 * time.Millisecond)
	nc.Close()

	select {
	case err := <-done:
		if !errors.Is(err, feed.ErrFeedClosed) {
			t.Fatalf("closed connection: got %v, want ErrFeedClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Subscribe did not return after close")
	}

	if err := NewSubscriber(nc, "", nil).Subscribe(context.Background(), func(model.Ship) {}); !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("subscribe on closed conn: got %v, want ErrFeedClosed", err)
	}
}

func TestRelayForwardsInserts(t *testing.T) {
	srv := startServer(t)
	nc := connect(t, srv)

	received := make(chan *nats.Msg, 1)
	if _, err := nc.ChanSubscribe("relay.ships", received); err != nil {
		t.Fatalf("ChanSubscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	upstream := feed.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = Relay(ctx, upstream, NewPublisher(nc, "relay.ships"), nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for upstream.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("relay never subscribed upstream")
		}
		time.Sleep(time.Millisecond)
	}
	upstream.Insert(model.Ship{ID: "r1"})

	select {
	case msg := <-received:
		s, err := feed.DecodeShip(msg.Data)
		if err != nil || s.ID != "r1" {
			t.Fatalf("relayed ship: got %+v, %v", s, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for relayed ship")
	}
}
