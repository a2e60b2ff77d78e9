package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/starfleet/assets"
	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
	"github.com/signalsfoundry/starfleet/loader"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/picking"
	"github.com/signalsfoundry/starfleet/timectrl"
)

const (
	// DefaultCommandBuffer is the host command queue size.
	DefaultCommandBuffer = 256
	// DefaultModelRetry is how long a vehicle type waits after a failed
	// model load before the loop tries again.
	DefaultModelRetry = 30 * time.Second
)

// ErrCommandQueueFull is returned by Enqueue when the tick has fallen
// behind the host.
var ErrCommandQueueFull = errors.New("command queue full")

// ShipSource hands over ships that arrived since the last call.
type ShipSource interface {
	Drain() []model.Ship
}

// ModelResolver serves decoded models. Cached must not block; Load runs off
// the frame goroutine.
type ModelResolver interface {
	Cached(assetID string) (*loader.Model, bool)
	Load(ctx context.Context, asset model.Asset) (*loader.Model, error)
}

// FrameRecorder receives per-tick measurements.
type FrameRecorder interface {
	SkipRecorder
	ObserveFrame(d time.Duration)
	SetLiveShips(n int)
}

// Config tunes the frame loop.
type Config struct {
	Updater         UpdaterConfig
	PlanetRadius    float64
	MinAngularSpeed float64
	MaxInstances    int
	CommandBuffer   int
	ModelRetry      time.Duration

	// Epoch and TLETimeScale map session time onto wall time for
	// TLE-tracked ships.
	Epoch        time.Time
	TLETimeScale float64
}

// DefaultConfig returns the stock loop tuning.
func DefaultConfig() Config {
	return Config{
		Updater:         DefaultUpdaterConfig(),
		PlanetRadius:    core.PlanetRadius,
		MinAngularSpeed: core.MinAngularSpeed,
		MaxInstances:    DefaultMaxInstances,
		CommandBuffer:   DefaultCommandBuffer,
		ModelRetry:      DefaultModelRetry,
		TLETimeScale:    1,
	}
}

// Loop owns the frame context and runs one tick at a time in strict phase
// order: host commands, new ships, selection, motion, camera, picking,
// labels, publish.
type Loop struct {
	cfg         Config
	scene       *Context
	ships       ShipSource
	catalog     *assets.Catalog
	corrections assets.Corrections
	models      ModelResolver
	newNode     NodeFactory
	updater     *Updater
	follow      *camera.Follow
	picker      *picking.Controller
	sink        picking.SelectSink
	log         logging.Logger
	metrics     FrameRecorder

	commands      chan Command
	pointer       picking.Pointer
	hasPointer    bool
	clicks        []picking.Pointer
	pendingSelect *string

	loading  map[string]bool
	retryAt  map[string]time.Time
	loadDone chan string
	now      func() time.Time

	tickMu sync.Mutex
	seq    uint64
	frame  atomic.Pointer[Frame]
}

// Option customises a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l logging.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.log = l
		}
	}
}

// WithMetrics attaches a frame recorder.
func WithMetrics(m FrameRecorder) Option {
	return func(lp *Loop) {
		lp.metrics = m
	}
}

// WithCatalog replaces the stock vehicle catalog.
func WithCatalog(c *assets.Catalog) Option {
	return func(lp *Loop) {
		if c != nil {
			lp.catalog = c
		}
	}
}

// WithCorrections replaces the stock correction table.
func WithCorrections(c assets.Corrections) Option {
	return func(lp *Loop) {
		lp.corrections = c
	}
}

// WithModels attaches a model resolver. Without one every ship renders as
// a placeholder.
func WithModels(m ModelResolver) Option {
	return func(lp *Loop) {
		lp.models = m
	}
}

// WithNodeFactory replaces NewDataNode.
func WithNodeFactory(f NodeFactory) Option {
	return func(lp *Loop) {
		if f != nil {
			lp.newNode = f
		}
	}
}

// WithSelectSink receives selection changes.
func WithSelectSink(s picking.SelectSink) Option {
	return func(lp *Loop) {
		lp.sink = s
	}
}

// NewLoop builds a loop over a ship source and a camera controller.
func NewLoop(cfg Config, ships ShipSource, follow *camera.Follow, opts ...Option) *Loop {
	if cfg.PlanetRadius <= 0 {
		cfg.PlanetRadius = core.PlanetRadius
	}
	if cfg.MinAngularSpeed <= 0 {
		cfg.MinAngularSpeed = core.MinAngularSpeed
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultCommandBuffer
	}
	if cfg.ModelRetry <= 0 {
		cfg.ModelRetry = DefaultModelRetry
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Now().UTC()
	}
	if follow == nil {
		follow = camera.NewFollow(camera.DefaultSettings())
	}

	l := &Loop{
		cfg:         cfg,
		scene:       NewContext(cfg.MaxInstances),
		ships:       ships,
		catalog:     assets.Default(),
		corrections: assets.DefaultCorrections(),
		newNode:     NewDataNode,
		follow:      follow,
		log:         logging.Noop(),
		commands:    make(chan Command, cfg.CommandBuffer),
		loading:     make(map[string]bool),
		retryAt:     make(map[string]time.Time),
		loadDone:    make(chan string, 16),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	var skips SkipRecorder
	if l.metrics != nil {
		skips = l.metrics
	}
	l.updater = NewUpdater(cfg.Updater, l.scene, l.log, skips)
	l.picker = picking.NewController(picking.SelectFunc(l.onSelect))
	return l
}

// Context exposes the frame context. Only safe to use from the frame
// goroutine.
func (l *Loop) Context() *Context {
	return l.scene
}

// Frame returns the latest published frame, or nil before the first tick.
func (l *Loop) Frame() *Frame {
	return l.frame.Load()
}

// Enqueue queues a host command for the next tick. It never blocks.
func (l *Loop) Enqueue(cmd Command) error {
	select {
	case l.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Run ticks on every clock interval until ctx ends.
func (l *Loop) Run(ctx context.Context, clock *timectrl.FrameClock) error {
	ticker := time.NewTicker(clock.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick := clock.Step()
			l.Tick(ctx, tick.Elapsed)
		}
	}
}

// Tick runs one frame at session time t and returns the published frame.
// ctx bounds model loads started for new vehicle types.
func (l *Loop) Tick(ctx context.Context, t float64) *Frame {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	start := time.Now()

	l.applyCommands()
	l.collectLoads()
	l.admit(ctx, l.drain())
	l.applySelect(ctx)
	l.upgradePlaceholders(ctx)

	l.updater.Update(t, l.scene.Entities())
	l.follow.Update(l.scene.Position)

	cam := l.follow.Camera()
	l.pick(cam)
	labels := LayoutLabels(cam, l.scene, l.cfg.PlanetRadius)

	frame := l.publish(t, cam, labels)
	if l.metrics != nil {
		l.metrics.ObserveFrame(time.Since(start))
		l.metrics.SetLiveShips(l.scene.Len())
	}
	return frame
}

func (l *Loop) applyCommands() {
	for {
		select {
		case cmd := <-l.commands:
			cmd.apply(l)
		default:
			return
		}
	}
}

func (l *Loop) drain() []model.Ship {
	if l.ships == nil {
		return nil
	}
	return l.ships.Drain()
}

func (l *Loop) admit(ctx context.Context, ships []model.Ship) {
	for _, s := range ships {
		if err := l.admitOne(ctx, s); err != nil {
			l.log.Warn(ctx, "ship not rendered",
				logging.String("ship_id", s.ID),
				logging.String("vehicle", s.SpaceshipID),
				logging.Err(err),
			)
		}
	}
}

func (l *Loop) admitOne(ctx context.Context, s model.Ship) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.skip(observability.SkipPanic)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	asset, err := l.catalog.Lookup(s.SpaceshipID)
	if err != nil {
		l.skip(observability.SkipUnknownVehicle)
		return err
	}
	if !l.scene.HasCapacity(asset.ID) {
		l.skip(observability.SkipInstanceCap)
		return fmt.Errorf("%w: %s", ErrInstanceCap, asset.ID)
	}

	m := l.resolveModel(ctx, asset)
	node := l.newNode(s, m)
	if node == nil {
		l.skip(observability.SkipNoNode)
		return errors.New("node factory returned no node")
	}

	_, err = l.scene.Register(&Entity{
		Ship:       s,
		AssetID:    asset.ID,
		Propagator: core.NewPropagator(s, l.cfg.MinAngularSpeed, l.cfg.Epoch, l.cfg.TLETimeScale),
		Correction: l.corrections.For(asset.ID),
		Model:      m,
		Node:       node,
	})
	return err
}

// resolveModel returns the cached model or a placeholder, starting a
// background load when a vehicle type is missing.
func (l *Loop) resolveModel(ctx context.Context, asset model.Asset) *loader.Model {
	if l.models == nil {
		return loader.Placeholder(asset)
	}
	if m, ok := l.models.Cached(asset.ID); ok {
		return m
	}
	l.startLoad(ctx, asset)
	return loader.Placeholder(asset)
}

// startLoad runs at most one load per vehicle type at a time. After a
// failure the type waits ModelRetry before the next attempt.
func (l *Loop) startLoad(ctx context.Context, asset model.Asset) {
	if l.loading[asset.ID] {
		return
	}
	if at, ok := l.retryAt[asset.ID]; ok && l.now().Before(at) {
		return
	}
	l.loading[asset.ID] = true
	go func() {
		if _, err := l.models.Load(ctx, asset); err != nil {
			l.log.Warn(ctx, "vehicle model unavailable, keeping placeholder",
				logging.String("vehicle", asset.ID),
				logging.Err(err),
			)
		}
		// The frame goroutine owns loading and retryAt.
		select {
		case l.loadDone <- asset.ID:
		case <-ctx.Done():
		}
	}()
}

func (l *Loop) collectLoads() {
	for {
		select {
		case id := <-l.loadDone:
			delete(l.loading, id)
			if l.models != nil {
				if _, ok := l.models.Cached(id); ok {
					delete(l.retryAt, id)
					continue
				}
			}
			l.retryAt[id] = l.now().Add(l.cfg.ModelRetry)
		default:
			return
		}
	}
}

func (l *Loop) upgradePlaceholders(ctx context.Context) {
	if l.models == nil {
		return
	}
	for _, e := range l.scene.Entities() {
		if !e.Model.IsPlaceholder() {
			continue
		}
		if m, ok := l.models.Cached(e.AssetID); ok {
			e.Model = m
			continue
		}
		if asset, ok := l.catalog.GetByID(e.AssetID); ok {
			l.startLoad(ctx, asset)
		}
	}
}

func (l *Loop) applySelect(ctx context.Context) {
	if l.pendingSelect == nil {
		return
	}
	id := *l.pendingSelect
	l.pendingSelect = nil
	if id != "" {
		if _, ok := l.scene.Entity(id); !ok {
			l.log.Info(ctx, "ignoring selection of a ship that is not rendered", logging.String("ship_id", id))
			return
		}
	}
	l.picker.Select(id)
}

func (l *Loop) pick(cam camera.Camera) {
	if len(l.clicks) == 0 && !l.hasPointer {
		l.picker.ClearHover()
		return
	}
	candidates := l.scene.Candidates()
	for _, p := range l.clicks {
		l.picker.Click(p, cam, candidates)
	}
	l.clicks = l.clicks[:0]
	if l.hasPointer {
		l.picker.Move(l.pointer, cam, candidates)
	} else {
		l.picker.ClearHover()
	}
}

func (l *Loop) onSelect(shipID string) {
	l.follow.Follow(shipID)
	if l.sink != nil {
		l.sink.Select(shipID)
	}
}

func (l *Loop) publish(t float64, cam camera.Camera, labels []Label) *Frame {
	l.seq++
	entities := l.scene.Entities()
	ships := make([]ShipView, 0, len(entities))
	for _, e := range entities {
		if _, ok := l.scene.Position(e.Ship.ID); !ok {
			continue
		}
		ships = append(ships, viewOf(e, l.scene))
	}

	f := &Frame{
		Seq:         l.seq,
		Elapsed:     t,
		Ships:       ships,
		Labels:      labels,
		Camera:      cam,
		CameraMode:  l.follow.Mode().String(),
		Interacting: l.follow.Interacting(),
	}
	f.Following, _ = l.follow.Target()
	f.Selected, _ = l.picker.Selected()
	f.Hovered, _ = l.picker.Hovered()
	l.frame.Store(f)
	return f
}

func (l *Loop) skip(reason string) {
	if l.metrics != nil {
		l.metrics.IncSkipped(reason)
	}
}
