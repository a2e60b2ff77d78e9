package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/qmuntal/gltf"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Breaker defaults for model hosts.
const (
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultBreakerFailures  = 3
	DefaultBreakerOpenDelay = 30 * time.Second
	maxModelBytes           = 64 << 20
)

// HTTPSource downloads models over HTTP(S). Each host gets its own circuit
// breaker so a dead CDN fails fast and the loader moves on to the local copy.
type HTTPSource struct {
	client   *http.Client
	failures uint32
	openFor  time.Duration
	onState  func(host string, open bool)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*gltf.Document]
}

// HTTPOption customises an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithHTTPTimeout sets the per-request timeout of the default client.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithBreaker sets how many consecutive failures open a host's breaker and
// how long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		if failures > 0 {
			s.failures = failures
		}
		if openFor > 0 {
			s.openFor = openFor
		}
	}
}

// WithBreakerStateHook is called whenever a host's breaker opens or closes.
func WithBreakerStateHook(fn func(host string, open bool)) HTTPOption {
	return func(s *HTTPSource) {
		s.onState = fn
	}
}

// NewHTTPSource builds a source whose transport is traced with otelhttp.
func NewHTTPSource(opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultHTTPTimeout,
		},
		failures: DefaultBreakerFailures,
		openFor:  DefaultBreakerOpenDelay,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*gltf.Document]),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fetch downloads and decodes the model at location. A 404 is reported as
// ErrNotFound and does not count against the host's breaker.
func (s *HTTPSource) Fetch(ctx context.Context, location string) (*gltf.Document, error) {
	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid model url %q", location)
	}
	doc, err := s.breaker(u.Host).Execute(func() (*gltf.Document, error) {
		return s.get(ctx, location)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	return doc, nil
}

func (s *HTTPSource) get(ctx context.Context, location string) (*gltf.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var doc gltf.Document
	if err := gltf.NewDecoder(io.LimitReader(resp.Body, maxModelBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &doc, nil
}

func (s *HTTPSource) breaker(host string) *gobreaker.CircuitBreaker[*gltf.Document] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[host]; ok {
		return cb
	}
	failures := s.failures
	cb := gobreaker.NewCircuitBreaker[*gltf.Document](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     s.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			if s.onState != nil {
				s.onState(name, to == gobreaker.StateOpen)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})
	s.breakers[host] = cb
	return cb
}
