// Package postgrest reads ship rows through a PostgREST endpoint.
package postgrest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/model"
)

// DefaultTable is the table holding ship rows.
const DefaultTable = "ships"

// Client performs the start-up bulk read.
type Client struct {
	baseURL string
	apiKey  string
	table   string
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTable reads from a table other than "ships".
func WithTable(table string) Option {
	return func(cl *Client) {
		if table != "" {
			cl.table = table
		}
	}
}

// New builds a client for the project at baseURL (scheme and host, no path).
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		table:   DefaultTable,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Name implements feed.Named.
func (c *Client) Name() string { return "postgrest" }

// ReadAll fetches every ship, oldest first.
func (c *Client) ReadAll(ctx context.Context) (ships []model.Ship, err error) {
	ctx, span := observability.StartSpan(ctx, "postgrest.ReadAll", "table", c.table)
	defer func() { observability.EndSpan(span, err) }()

	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.asc")
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(c.table), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("read %s: status %d: %s", c.table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&ships); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.table, err)
	}
	return ships, nil
}
