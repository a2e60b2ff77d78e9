package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "OK")); got != 1 {
		t.Fatalf("starfleet_grpc_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "starfleet_grpc_request_duration_seconds", map[string]string{
		"service": "Health",
		"method":  "Check",
	}); count != 1 {
		t.Fatalf("starfleet_grpc_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, _ = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "NotFound")); got != 1 {
		t.Fatalf("error label = %v, want 1", got)
	}
}

func TestEngineCollectorFrameMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("NewEngineCollector: %v", err)
	}
	collector.ObserveFrame(4 * time.Millisecond)
	collector.SetLiveShips(12)
	collector.IncSkipped(SkipUnknownVehicle)
	collector.IncSkipped(SkipUnknownVehicle)

	if got := testutil.ToFloat64(collector.LiveShips); got != 12 {
		t.Fatalf("live ships = %v, want 12", got)
	}
	if got := testutil.ToFloat64(collector.SkippedShips.WithLabelValues(SkipUnknownVehicle)); got != 2 {
		t.Fatalf("skipped ships = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "starfleet_frame_duration_seconds", nil); count != 1 {
		t.Fatalf("frame duration sample_count = %d, want 1", count)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{"starfleet_frame_duration_seconds", "starfleet_live_ships 12", "starfleet_skipped_ships_total"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestPipelineCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	collector.ObserveModelLoad("remote", ResultError, 30*time.Millisecond)
	collector.ObserveModelLoad("local", ResultOK, 5*time.Millisecond)
	collector.IncFeedInserts("nats")
	collector.SetBreakerOpen("cdn.example", true)

	if got := testutil.ToFloat64(collector.ModelLoads.WithLabelValues("remote", ResultError)); got != 1 {
		t.Fatalf("remote error loads = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.FeedInserts.WithLabelValues("nats")); got != 1 {
		t.Fatalf("nats inserts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.BreakerOpen.WithLabelValues("cdn.example")); got != 1 {
		t.Fatalf("breaker gauge = %v, want 1", got)
	}
	if count := histogramSampleCount(t, collector.Gatherer(), "starfleet_model_load_duration_seconds", map[string]string{"source": "local"}); count != 1 {
		t.Fatalf("local load duration sample_count = %d, want 1", count)
	}
}

func TestCollectorsTolerateDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("first NewEngineCollector: %v", err)
	}
	second, err := NewEngineCollector(reg)
	if err != nil {
		t.Fatalf("second NewEngineCollector: %v", err)
	}
	second.SetLiveShips(3)
	if got := testutil.ToFloat64(first.LiveShips); got != 3 {
		t.Fatalf("shared gauge = %v, want 3", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	var e *EngineCollector
	e.ObserveFrame(time.Millisecond)
	e.SetLiveShips(1)
	e.IncSkipped(SkipPanic)
	var p *PipelineCollector
	p.ObserveModelLoad("remote", ResultOK, time.Millisecond)
	p.IncFeedInserts("realtime")
	p.SetBreakerOpen("h", false)
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/grpc.health.v1.Health/Check": {"Health", "Check"},
		"":                             {"unknown", "unknown"},
		"Check":                        {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, m := SplitMethod(in)
		if svc != want[0] || m != want[1] {
			t.Fatalf("SplitMethod(%q) = %q/%q, want %q/%q", in, svc, m, want[0], want[1])
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
