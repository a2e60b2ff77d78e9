package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/model"
)

// fakeServer accepts one connection, waits for the join, then runs script.
func fakeServer(t *testing.T, script func(conn *websocket.Conn, join message)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "anon" {
			t.Errorf("apikey query param missing: %q", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var join message
		if err := conn.ReadJSON(&join); err != nil {
			t.Errorf("read join: %v", err)
			return
		}
		script(conn, join)
	}))
}

func insertFrame(topic, record string) string {
	return `{"topic":"` + topic + `","event":"postgres_changes","ref":null,"payload":{"data":{"type":"INSERT","schema":"public","table":"ships","record":` + record + `}}}`
}

func TestSubscribeDeliversInserts(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn, join message) {
		if join.Event != "phx_join" || join.Topic != "realtime:public:ships" {
			t.Errorf("join frame: got %s %s", join.Event, join.Topic)
		}
		var p joinPayload
		if err := json.Unmarshal(join.Payload, &p); err != nil || len(p.Config.PostgresChanges) != 1 || p.Config.PostgresChanges[0].Event != "INSERT" {
			t.Errorf("join payload: %s (%v)", join.Payload, err)
		}
		frames := []string{
			`{"topic":"realtime:public:ships","event":"phx_reply","ref":"1","payload":{"status":"ok"}}`,
			insertFrame("realtime:public:ships", `{"id":"s1","name":"Alpha","spaceship_id":"jet","price":0}`),
			`{"topic":"realtime:public:other","event":"postgres_changes","ref":null,"payload":{}}`,
			`not json`,
			insertFrame("realtime:public:ships", `{"id":"s2","name":"Beta","spaceship_id":"ship-1","price":5}`),
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		// Keep the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.Ship, 4)
	done := make(chan error, 1)
	c := New(srv.URL, "anon")
	go func() { done <- c.Subscribe(ctx, func(s model.Ship) { got <- s }) }()

	for _, want := range []string{"s1", "s2"} {
		select {
		case s := <-got:
			if s.ID != want {
				t.Fatalf("insert: got %q, want %q", s.ID, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe after cancel: got %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Subscribe did not return after cancel")
	}
}

func TestSubscribeReportsDroppedConnection(t *testing.T) {
	srv := fakeServer(t, func(conn *websocket.Conn, join message) {})
	defer srv.Close()

	err := New(srv.URL, "anon").Subscribe(context.Background(), func(model.Ship) {})
	if !errors.Is(err, feed.ErrFeedClosed) {
		t.Fatalf("dropped connection: got %v, want ErrFeedClosed", err)
	}
}

func TestSubscribeSendsHeartbeats(t *testing.T) {
	beat := make(chan message, 1)
	srv := fakeServer(t, func(conn *websocket.Conn, join message) {
		var m message
		if err := conn.ReadJSON(&m); err == nil {
			beat <- m
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = New(srv.URL, "anon", WithHeartbeat(10*time.Millisecond)).Subscribe(ctx, func(model.Ship) {}) }()

	select {
	case m := <-beat:
		if m.Topic != "phoenix" || m.Event != "heartbeat" {
			t.Fatalf("heartbeat frame: got %s %s", m.Topic, m.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no heartbeat received")
	}
}

func TestBuildURL(t *testing.T) {
	c := New("https://proj.example.co/realtime/v1/websocket", "key")
	u, err := c.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if !strings.HasPrefix(u, "wss://proj.example.co/realtime/v1/websocket?") || !strings.Contains(u, "apikey=key") {
		t.Fatalf("buildURL: got %q", u)
	}
	if _, err := New("ftp://x", "").buildURL(); err == nil {
		t.Fatalf("expected error for ftp scheme")
	}
}
