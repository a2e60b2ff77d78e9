// Package loader fetches vehicle models from their remote and local
// locations, falls back between them, and caches the decoded result.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/qmuntal/gltf"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/model"
)

// ErrModelUnavailable is returned when every location of an asset failed.
var ErrModelUnavailable = errors.New("model unavailable")

// PlaceholderKind names the stand-in used when a model cannot be loaded.
type PlaceholderKind string

const (
	PlaceholderNone PlaceholderKind = ""
	PlaceholderIcon PlaceholderKind = "icon"
	PlaceholderBox  PlaceholderKind = "box"
)

// Model is a decoded vehicle model ready to be instanced, or a placeholder.
type Model struct {
	AssetID string
	Doc     *gltf.Document
	// MeshNode indexes the node in Doc.Nodes carrying the mesh to reuse.
	MeshNode    int
	Source      model.SourceKind
	Placeholder PlaceholderKind
	// IconPath is the preview image drawn for icon placeholders.
	IconPath string
}

// IsPlaceholder reports whether m stands in for a model that failed to load.
func (m *Model) IsPlaceholder() bool {
	return m != nil && m.Placeholder != PlaceholderNone
}

// Mesh returns the reusable mesh, or nil for placeholders.
func (m *Model) Mesh() *gltf.Mesh {
	if m == nil || m.Doc == nil || m.MeshNode < 0 || m.MeshNode >= len(m.Doc.Nodes) {
		return nil
	}
	idx := m.Doc.Nodes[m.MeshNode].Mesh
	if idx == nil || *idx < 0 || *idx >= len(m.Doc.Meshes) {
		return nil
	}
	return m.Doc.Meshes[*idx]
}

// Placeholder builds the stand-in for an asset: its preview icon when it has
// one, a coloured box otherwise.
func Placeholder(asset model.Asset) *Model {
	if asset.PreviewPNG != "" {
		return &Model{AssetID: asset.ID, MeshNode: -1, Placeholder: PlaceholderIcon, IconPath: asset.PreviewPNG}
	}
	return &Model{AssetID: asset.ID, MeshNode: -1, Placeholder: PlaceholderBox}
}

// Recorder receives per-attempt load outcomes.
type Recorder interface {
	ObserveModelLoad(source, result string, d time.Duration)
}

// Loader resolves assets to models. Successful loads are cached per asset
// id; concurrent loads of the same asset share one fetch. Failures are not
// cached so a later call retries.
type Loader struct {
	sources map[model.SourceKind]Source
	log     logging.Logger
	metrics Recorder

	mu    sync.RWMutex
	cache map[string]*Model
	group singleflight.Group
}

// Option customises a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l logging.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.log = l
		}
	}
}

// WithMetrics attaches a load outcome recorder.
func WithMetrics(r Recorder) Option {
	return func(ld *Loader) {
		ld.metrics = r
	}
}

// New builds a loader over a remote and a local source. Either may be nil,
// in which case locations of that kind are skipped.
func New(remote, local Source, opts ...Option) *Loader {
	ld := &Loader{
		sources: make(map[model.SourceKind]Source, 2),
		log:     logging.Noop(),
		cache:   make(map[string]*Model),
	}
	if remote != nil {
		ld.sources[model.SourceRemote] = remote
	}
	if local != nil {
		ld.sources[model.SourceLocal] = local
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ld)
		}
	}
	return ld
}

// Cached returns the cached model for an asset id without loading.
func (ld *Loader) Cached(assetID string) (*Model, bool) {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	m, ok := ld.cache[assetID]
	return m, ok
}

// Load resolves an asset to a decoded model, trying its locations in the
// asset's source order. When every location fails the returned error wraps
// ErrModelUnavailable together with each attempt's cause.
func (ld *Loader) Load(ctx context.Context, asset model.Asset) (*Model, error) {
	if m, ok := ld.Cached(asset.ID); ok {
		return m, nil
	}

	// The shared fetch outlives any one caller; each caller stops waiting
	// when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := ld.group.DoChan(asset.ID, func() (any, error) {
		if m, ok := ld.Cached(asset.ID); ok {
			return m, nil
		}
		m, err := ld.load(shared, asset)
		if err != nil {
			return nil, err
		}
		ld.mu.Lock()
		ld.cache[asset.ID] = m
		ld.mu.Unlock()
		return m, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Model), nil
	}
}

func (ld *Loader) load(ctx context.Context, asset model.Asset) (m *Model, err error) {
	ctx, span := observability.StartSpan(ctx, "loader.Load", "asset", asset.ID,
		attribute.String("source_order", string(asset.Order)))
	defer func() { observability.EndSpan(span, err) }()

	var errs []error
	for _, loc := range asset.Locations() {
		src, ok := ld.sources[loc.Kind]
		if !ok {
			continue
		}
		start := time.Now()
		doc, ferr := src.Fetch(ctx, loc.Path)
		if ferr == nil {
			var node int
			node, ferr = FirstMesh(doc)
			if ferr == nil {
				ld.record(loc.Kind, observability.ResultOK, time.Since(start))
				return &Model{AssetID: asset.ID, Doc: doc, MeshNode: node, Source: loc.Kind}, nil
			}
		}
		ld.record(loc.Kind, observability.ResultError, time.Since(start))
		ld.log.Debug(ctx, "model source failed",
			logging.String("asset", asset.ID),
			logging.String("source", string(loc.Kind)),
			logging.String("location", loc.Path),
			logging.Err(ferr),
		)
		errs = append(errs, fmt.Errorf("%s: %w", loc.Kind, ferr))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no usable location"))
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, asset.ID, errors.Join(errs...))
}

// LoadOrPlaceholder never fails: a load or mesh error is logged and the
// asset's placeholder returned instead.
func (ld *Loader) LoadOrPlaceholder(ctx context.Context, asset model.Asset) *Model {
	m, err := ld.Load(ctx, asset)
	if err == nil {
		return m
	}
	ld.log.Warn(ctx, "using placeholder model",
		logging.String("asset", asset.ID),
		logging.Err(err),
	)
	ld.record(model.SourceKind("placeholder"), observability.ResultPlaceholder, 0)
	return Placeholder(asset)
}

// Preload warms the cache for every asset concurrently. Individual failures
// are logged and do not stop the others; the returned count is how many
// assets loaded.
func (ld *Loader) Preload(ctx context.Context, assets []model.Asset, parallel int) int {
	if parallel <= 0 {
		parallel = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	var (
		mu     sync.Mutex
		loaded int
	)
	for _, a := range assets {
		g.Go(func() error {
			if _, err := ld.Load(gctx, a); err != nil {
				ld.log.Info(gctx, "preload failed", logging.String("asset", a.ID), logging.Err(err))
				return nil
			}
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return loaded
}

func (ld *Loader) record(kind model.SourceKind, result string, d time.Duration) {
	if ld.metrics != nil {
		ld.metrics.ObserveModelLoad(string(kind), result, d)
	}
}
