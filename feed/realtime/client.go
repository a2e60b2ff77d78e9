// Package realtime subscribes to row inserts over a Phoenix-channel
// WebSocket change feed (the protocol spoken by Supabase Realtime).
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/internal/logging"
)

const (
	DefaultHeartbeat = 25 * time.Second
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// message is one Phoenix channel frame.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type joinPayload struct {
	Config joinConfig `json:"config"`
}

type joinConfig struct {
	PostgresChanges []changeFilter `json:"postgres_changes"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type changePayload struct {
	Data struct {
		Type   string          `json:"type"`
		Schema string          `json:"schema"`
		Table  string          `json:"table"`
		Record json.RawMessage `json:"record"`
	} `json:"data"`
}

// Client listens for inserts on one table.
type Client struct {
	endpoint  string
	apiKey    string
	schema    string
	table     string
	heartbeat time.Duration
	dialer    *websocket.Dialer
	log       logging.Logger

	ref atomic.Uint64
}

// Option customises a Client.
type Option func(*Client)

// WithTable listens on schema.table instead of public.ships.
func WithTable(schema, table string) Option {
	return func(c *Client) {
		if schema != "" {
			c.schema = schema
		}
		if table != "" {
			c.table = table
		}
	}
}

// WithHeartbeat sets the client heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a client. endpoint is the realtime WebSocket URL
// (wss://host/realtime/v1/websocket); http(s) schemes are converted.
func New(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:  endpoint,
		apiKey:    apiKey,
		schema:    "public",
		table:     "ships",
		heartbeat: DefaultHeartbeat,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name implements feed.Named.
func (c *Client) Name() string { return "realtime" }

// Topic is the channel topic joined for the table.
func (c *Client) Topic() string {
	return fmt.Sprintf("realtime:%s:%s", c.schema, c.table)
}

// Subscribe connects, joins the table's channel and delivers each INSERT
// record to onInsert. It returns nil when ctx ends and an error wrapping
// feed.ErrFeedClosed when the connection drops.
func (c *Client) Subscribe(ctx context.Context, onInsert feed.InsertFunc) error {
	wsURL, err := c.buildURL()
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("realtime dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("realtime dial: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(topic, event string, payload any) error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ref := strconv.FormatUint(c.ref.Add(1), 10)
		frame, err := json.Marshal(message{Topic: topic, Event: event, Payload: raw, Ref: &ref})
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	join := joinPayload{Config: joinConfig{PostgresChanges: []changeFilter{{
		Event: "INSERT", Schema: c.schema, Table: c.table,
	}}}}
	if err := send(c.Topic(), "phx_join", join); err != nil {
		return fmt.Errorf("realtime join: %w", err)
	}
	c.log.Info(ctx, "realtime subscribed", logging.String("topic", c.Topic()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Unblocks ReadMessage below.
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := send("phoenix", "heartbeat", struct{}{}); err != nil {
					c.log.Warn(ctx, "realtime heartbeat failed", logging.Err(err))
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", feed.ErrFeedClosed, err)
		}
		c.handle(ctx, data, onInsert)
	}
}

func (c *Client) handle(ctx context.Context, data []byte, onInsert feed.InsertFunc) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn(ctx, "realtime frame not understood", logging.Err(err))
		return
	}
	if msg.Topic != c.Topic() || msg.Event != "postgres_changes" {
		return
	}

	var change changePayload
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		c.log.Warn(ctx, "realtime change payload not understood", logging.Err(err))
		return
	}
	if !strings.EqualFold(change.Data.Type, "INSERT") {
		return
	}
	ship, err := feed.DecodeShip(change.Data.Record)
	if err != nil {
		c.log.Warn(ctx, "realtime record not understood", logging.Err(err))
		return
	}
	onInsert(ship)
}

func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("realtime url must use ws, wss, http or https")
	}
	q := u.Query()
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
