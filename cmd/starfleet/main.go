package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/starfleet/assets"
	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/feed"
	"github.com/signalsfoundry/starfleet/feed/natsfeed"
	"github.com/signalsfoundry/starfleet/feed/postgrest"
	"github.com/signalsfoundry/starfleet/feed/realtime"
	"github.com/signalsfoundry/starfleet/fleet"
	"github.com/signalsfoundry/starfleet/internal/config"
	"github.com/signalsfoundry/starfleet/internal/hostapi"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/internal/supervisor"
	"github.com/signalsfoundry/starfleet/loader"
	"github.com/signalsfoundry/starfleet/scene"
	"github.com/signalsfoundry/starfleet/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults to $CONFIG_PATH)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "starfleet: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := cfg.Logging.Logger()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	a, err := newApp(cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	log.Info(ctx, "starting starfleet",
		logging.String("feed", cfg.Feed.Mode),
		logging.String("http_addr", cfg.Server.HTTPAddr),
		logging.String("grpc_addr", cfg.Server.GRPCAddr),
	)
	return a.tree.Serve(ctx)
}

// app holds the wired process: registry, model loader, frame loop, host API
// and the supervisor tree that runs them.
type app struct {
	cfg      *config.Config
	log      logging.Logger
	engine   *observability.EngineCollector
	pipeline *observability.PipelineCollector
	catalog  *assets.Catalog
	registry *fleet.Registry
	models   *loader.Loader
	loop     *scene.Loop
	api      *hostapi.Server
	health   *health.Server
	tree     *supervisor.Tree
	closers  []func()
}

func newApp(cfg *config.Config, log logging.Logger, reg *prometheus.Registry) (*app, error) {
	engine, err := observability.NewEngineCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}
	pipeline, err := observability.NewPipelineCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		pipeline: pipeline,
		catalog:  assets.Default(cfg.Assets...),
		registry: fleet.New(fleet.WithLogger(log), fleet.WithMetrics(pipeline)),
		health:   health.NewServer(),
		tree:     supervisor.NewTree(logging.Slog(log), supervisor.TreeConfig{}),
	}
	a.closers = append(a.closers, a.registry.Close)

	mc := cfg.Models
	remote := loader.NewHTTPSource(
		loader.WithHTTPTimeout(mc.HTTPTimeout),
		loader.WithBreaker(mc.BreakerFailures, mc.BreakerOpen),
		loader.WithBreakerStateHook(pipeline.SetBreakerOpen),
	)
	a.models = loader.New(remote, loader.FileSource{Root: mc.LocalRoot},
		loader.WithLogger(log),
		loader.WithMetrics(pipeline),
	)

	loopCfg := cfg.Scene.LoopConfig()
	loopCfg.ModelRetry = mc.RetryAfter
	a.loop = scene.NewLoop(loopCfg, a.registry, camera.NewFollow(cfg.Camera),
		scene.WithLogger(log),
		scene.WithMetrics(engine),
		scene.WithCatalog(a.catalog),
		scene.WithModels(a.models),
	)

	sc := cfg.Server
	a.api = hostapi.New(a.loop, a.registry,
		hostapi.WithLogger(log),
		hostapi.WithMetricsHandler(sc.MetricsPath, engine.Handler()),
		hostapi.WithStreamInterval(sc.StreamInterval()),
	)

	a.addEngineServices()
	if err := a.addFeedServices(); err != nil {
		a.close()
		return nil, err
	}
	a.addAPIServices()
	return a, nil
}

func (a *app) addEngineServices() {
	clock := timectrl.NewFrameClock(a.cfg.Scene.TickInterval(), timectrl.RealTime)
	a.tree.AddEngineService(supervisor.Func{Name: "frame-loop", Run: func(ctx context.Context) error {
		return a.loop.Run(ctx, clock)
	}})

	mc := a.cfg.Models
	if !mc.Preload {
		return
	}
	a.tree.AddEngineService(supervisor.Once{Name: "model-preload", Run: func(ctx context.Context) error {
		catalog := a.catalog.All()
		n := a.models.Preload(ctx, catalog, mc.PreloadParallel)
		a.log.Info(ctx, "vehicle models preloaded",
			logging.Int("loaded", n),
			logging.Int("catalog", len(catalog)),
		)
		return nil
	}})
}

func (a *app) addFeedServices() error {
	fc := a.cfg.Feed
	switch fc.Mode {
	case config.FeedNone:
		a.log.Info(context.Background(), "no ship feed configured; registry stays empty")
		return nil

	case config.FeedNATS:
		conn, err := a.connectNATS()
		if err != nil {
			return err
		}
		a.subscribe("nats-subscription", natsfeed.NewSubscriber(conn, fc.NATSSubject, a.log))
		return nil

	case config.FeedSupabase:
		rest := postgrest.New(fc.RESTURL, fc.APIKey, postgrest.WithTable(fc.Table))
		a.tree.AddFeedService(supervisor.Once{Name: "initial-load", Run: func(ctx context.Context) error {
			if err := a.registry.InitialLoad(ctx, rest); err != nil {
				a.log.Warn(ctx, "initial ship load failed; continuing with live inserts only", logging.Err(err))
			}
			return nil
		}})

		if fc.RealtimeURL == "" {
			a.log.Warn(context.Background(), "no realtime endpoint configured; live inserts disabled")
			return nil
		}
		live := realtime.New(fc.RealtimeURL, fc.APIKey,
			realtime.WithTable("public", fc.Table),
			realtime.WithLogger(a.log),
		)
		if !fc.RelayToNATS {
			a.subscribe("realtime-subscription", live)
			return nil
		}

		conn, err := a.connectNATS()
		if err != nil {
			return err
		}
		pub := natsfeed.NewPublisher(conn, fc.NATSSubject)
		a.tree.AddFeedService(supervisor.Once{Name: "realtime-relay", Run: func(ctx context.Context) error {
			if err := natsfeed.Relay(ctx, live, pub, a.log); err != nil && ctx.Err() == nil {
				a.log.Warn(ctx, "realtime relay ended", logging.Err(err))
			}
			return nil
		}})
		a.subscribe("nats-subscription", natsfeed.NewSubscriber(conn, fc.NATSSubject, a.log))
		return nil

	default:
		return fmt.Errorf("%w: unknown feed mode %q", config.ErrInvalid, fc.Mode)
	}
}

// subscribe runs the registry's live subscription once. The registry logs
// and swallows feed errors, so a dropped feed is not reconnected.
func (a *app) subscribe(name string, sub feed.Subscriber) {
	a.tree.AddFeedService(supervisor.Once{Name: name, Run: func(ctx context.Context) error {
		return a.registry.Subscribe(ctx, sub)
	}})
}

func (a *app) connectNATS() (*nats.Conn, error) {
	fc := a.cfg.Feed
	url := fc.NATSURL
	if fc.EmbeddedNATS {
		srv, err := natsfeed.StartEmbedded("127.0.0.1", fc.NATSPort)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		a.closers = append(a.closers, srv.Shutdown)
		url = srv.ClientURL()
		a.log.Info(context.Background(), "embedded NATS server started", logging.String("url", url))
	}

	conn, err := nats.Connect(url,
		nats.Name("starfleet"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect NATS %s: %w", url, err)
	}
	a.closers = append(a.closers, conn.Close)
	return conn, nil
}

func (a *app) addAPIServices() {
	sc := a.cfg.Server
	a.tree.AddAPIService(supervisor.Func{Name: "host-api", Run: func(ctx context.Context) error {
		return a.api.Serve(ctx, sc.HTTPAddr)
	}})
	if sc.GRPCAddr == "" {
		return
	}
	a.tree.AddAPIService(supervisor.Func{Name: "grpc-health", Run: func(ctx context.Context) error {
		lis, err := net.Listen("tcp", sc.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", sc.GRPCAddr, err)
		}
		return a.serveGRPC(ctx, lis)
	}})
}

// serveGRPC serves the standard health service until ctx ends. The fleet
// service reports NOT_SERVING until the registry holds data from a feed.
func (a *app) serveGRPC(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(a.engine.UnaryServerInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, a.health)
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.syncFleetHealth()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()
	a.log.Info(ctx, "gRPC health listening", logging.String("addr", lis.Addr().String()))

	for {
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			a.health.Shutdown()
			srv.GracefulStop()
			return ctx.Err()
		case <-time.After(healthPollInterval):
			a.syncFleetHealth()
		}
	}
}

const (
	fleetHealthService = "starfleet.fleet"
	healthPollInterval = time.Second
)

func (a *app) syncFleetHealth() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	switch a.registry.State() {
	case fleet.StatePopulated, fleet.StateSubscribed:
		status = healthpb.HealthCheckResponse_SERVING
	case fleet.StateUninitialized:
		if a.cfg.Feed.Mode == config.FeedNone {
			status = healthpb.HealthCheckResponse_SERVING
		}
	}
	a.health.SetServingStatus(fleetHealthService, status)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
