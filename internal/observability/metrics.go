package observability

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Skip reasons reported by the frame updater.
const (
	SkipUnknownVehicle = "unknown_vehicle"
	SkipNoNode         = "no_node"
	SkipInstanceCap    = "instance_cap"
	SkipPanic          = "panic"
	SkipNonFinite      = "non_finite"
)

// EngineCollector bundles the frame-loop metrics and the gRPC request
// metrics of the host process.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	FrameDuration prometheus.Histogram
	LiveShips     prometheus.Gauge
	SkippedShips  *prometheus.CounterVec

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewEngineCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	reg, gatherer := gathererFor(reg)

	frame, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "starfleet_frame_duration_seconds",
		Help:    "Wall time spent in one frame tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.025, 0.05, 0.1},
	}), "starfleet_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	live, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "starfleet_live_ships",
		Help: "Ships currently held by the live registry.",
	}), "starfleet_live_ships")
	if err != nil {
		return nil, err
	}

	skipped, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starfleet_skipped_ships_total",
		Help: "Ships left out of a frame, labeled by reason.",
	}, []string{"reason"}), "starfleet_skipped_ships_total")
	if err != nil {
		return nil, err
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starfleet_grpc_requests_total",
		Help: "Total number of handled gRPC calls, labeled by service, method, and status code.",
	}, []string{"service", "method", "code"}), "starfleet_grpc_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starfleet_grpc_request_duration_seconds",
		Help:    "gRPC call latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "starfleet_grpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:      gatherer,
		FrameDuration: frame,
		LiveShips:     live,
		SkippedShips:  skipped,
		RPCRequests:   requests,
		RPCDurations:  durations,
	}, nil
}

// ObserveFrame records the duration of one tick.
func (c *EngineCollector) ObserveFrame(d time.Duration) {
	if c == nil || c.FrameDuration == nil {
		return
	}
	c.FrameDuration.Observe(d.Seconds())
}

// SetLiveShips updates the registry size gauge.
func (c *EngineCollector) SetLiveShips(n int) {
	if c == nil || c.LiveShips == nil {
		return
	}
	c.LiveShips.Set(float64(n))
}

// IncSkipped counts a ship left out of a frame.
func (c *EngineCollector) IncSkipped(reason string) {
	if c == nil || c.SkippedShips == nil {
		return
	}
	c.SkippedShips.WithLabelValues(reason).Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *EngineCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components, returning "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}
