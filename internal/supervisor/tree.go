// Package supervisor runs the service's long-lived components under a
// suture tree, restarting the ones that fail.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's stock failure handling with a 10s
// shutdown timeout.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree groups services into three layers so a failing feed cannot take the
// frame loop or the host API down with it:
//   - engine: frame loop, model preload
//   - feeds: initial load, change subscription, NATS relay
//   - api: HTTP host API, gRPC health
type Tree struct {
	root   *suture.Supervisor
	engine *suture.Supervisor
	feeds  *suture.Supervisor
	api    *suture.Supervisor
	config TreeConfig
}

// NewTree builds the tree. Supervisor events are logged through logger.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	handler := &sutureslog.Handler{Logger: logger}
	spec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = handler.MustHook()

	t := &Tree{
		root:   suture.New("starfleet", rootSpec),
		engine: suture.New("engine", spec),
		feeds:  suture.New("feeds", spec),
		api:    suture.New("api", spec),
		config: config,
	}
	t.root.Add(t.engine)
	t.root.Add(t.feeds)
	t.root.Add(t.api)
	return t
}

// AddEngineService adds a service to the engine layer.
func (t *Tree) AddEngineService(svc suture.Service) suture.ServiceToken {
	return t.engine.Add(svc)
}

// AddFeedService adds a service to the feed layer.
func (t *Tree) AddFeedService(svc suture.Service) suture.ServiceToken {
	return t.feeds.Add(svc)
}

// AddAPIService adds a service to the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx ends.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree on its own goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Func adapts a blocking function into a restartable service.
type Func struct {
	Name string
	Run  func(ctx context.Context) error
}

// Serve implements suture.Service.
func (f Func) Serve(ctx context.Context) error {
	return f.Run(ctx)
}

// String names the service in supervisor logs.
func (f Func) String() string {
	return f.Name
}

// Once adapts a function that must run to completion at most once. It is
// restarted only when it fails; a nil return retires it.
type Once struct {
	Name string
	Run  func(ctx context.Context) error
}

// Serve implements suture.Service.
func (o Once) Serve(ctx context.Context) error {
	if err := o.Run(ctx); err != nil {
		return err
	}
	return suture.ErrDoNotRestart
}

// String names the service in supervisor logs.
func (o Once) String() string {
	return o.Name
}
