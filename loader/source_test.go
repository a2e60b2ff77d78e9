package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

const tinyGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"name": "root", "children": [1]}, {"name": "hull", "mesh": 0}],
  "meshes": [{"name": "hull", "primitives": [{"attributes": {}}]}]
}`

func TestHTTPSourceDecodesAndReports404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jet" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "model/gltf+json")
		_, _ = w.Write([]byte(tinyGLTF))
	}))
	defer srv.Close()

	src := NewHTTPSource(WithHTTPClient(srv.Client()))

	doc, err := src.Fetch(context.Background(), srv.URL+"/jet")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if idx, err := FirstMesh(doc); err != nil || idx != 1 {
		t.Fatalf("FirstMesh: got %d, %v; want 1, nil", idx, err)
	}

	if _, err := src.Fetch(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing model: got %v, want ErrNotFound", err)
	}
}

func TestHTTPSourceBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var opened atomic.Bool
	src := NewHTTPSource(
		WithHTTPClient(srv.Client()),
		WithBreaker(2, time.Minute),
		WithBreakerStateHook(func(host string, open bool) { opened.Store(open) }),
	)

	for i := 0; i < 2; i++ {
		if _, err := src.Fetch(context.Background(), srv.URL+"/jet"); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	_, err := src.Fetch(context.Background(), srv.URL+"/jet")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("third attempt: got %v, want ErrOpenState", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("server hits: got %d, want 2", hits.Load())
	}
	if !opened.Load() {
		t.Fatalf("state hook not told about open breaker")
	}
}

func TestHTTPSourceRejectsRelativeURL(t *testing.T) {
	if _, err := NewHTTPSource().Fetch(context.Background(), "models/jet.glb"); err == nil {
		t.Fatalf("expected error for relative url")
	}
}

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "models", "jet.gltf"), []byte(tinyGLTF), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := FileSource{Root: root}

	doc, err := src.Fetch(context.Background(), "models/jet.gltf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Nodes) != 2 {
		t.Fatalf("nodes: got %d, want 2", len(doc.Nodes))
	}

	if _, err := src.Fetch(context.Background(), "models/missing.glb"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing file: got %v, want ErrNotFound", err)
	}
	if _, err := src.Fetch(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("escaping path: got %v, want ErrNotFound", err)
	}
}
