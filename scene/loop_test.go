package scene

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/fleet"
	"github.com/signalsfoundry/starfleet/loader"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/picking"
)

type frameRecorder struct {
	skipCounter
	frames int
	live   int
}

func (r *frameRecorder) ObserveFrame(time.Duration) { r.frames++ }
func (r *frameRecorder) SetLiveShips(n int)         { r.live = n }

func testShip(id, vehicle string, radius float64) model.Ship {
	return model.Ship{
		ID:           id,
		Name:         "Ship " + id,
		SpaceshipID:  vehicle,
		OrbitRadius:  model.Float(radius),
		Inclination:  model.Float(0),
		Phase:        model.Float(0),
		Eccentricity: model.Float(0),
		AngularSpeed: model.Float(1),
	}
}

func newTestLoop(t *testing.T, opts ...Option) (*Loop, *fleet.Registry) {
	t.Helper()
	reg := fleet.New()
	t.Cleanup(reg.Close)
	l := NewLoop(DefaultConfig(), reg, camera.NewFollow(camera.DefaultSettings()), opts...)
	return l, reg
}

func TestTickPicksUpInsertedShipsSameFrame(t *testing.T) {
	rec := &frameRecorder{skipCounter: skipCounter{}}
	l, reg := newTestLoop(t, WithMetrics(rec))
	ctx := context.Background()

	l.Tick(ctx, 0)
	reg.Insert(testShip("s1", "jet", 5))

	f := l.Tick(ctx, 0)
	v, ok := f.Ship("s1")
	if !ok {
		t.Fatalf("ship inserted before tick missing from frame %d", f.Seq)
	}
	if !near(v.Transform.Position, core.Vec3{X: 5}) {
		t.Fatalf("position: got %+v, want (5,0,0)", v.Transform.Position)
	}
	if rec.frames != 2 || rec.live != 1 {
		t.Fatalf("recorder: got frames=%d live=%d", rec.frames, rec.live)
	}
	if l.Frame() != f {
		t.Fatalf("Frame() did not return the last published frame")
	}
}

func TestTickSkipsUnknownVehicle(t *testing.T) {
	rec := &frameRecorder{skipCounter: skipCounter{}}
	l, reg := newTestLoop(t, WithMetrics(rec))

	reg.Insert(testShip("s1", "ufo", 5))
	reg.Insert(testShip("s2", "airship", 5))
	f := l.Tick(context.Background(), 0)

	if _, ok := f.Ship("s1"); ok {
		t.Fatalf("ship with unknown vehicle was rendered")
	}
	if _, ok := f.Ship("s2"); !ok {
		t.Fatalf("valid ship missing")
	}
	if rec.skipCounter["unknown_vehicle"] != 1 {
		t.Fatalf("skips: got %v", rec.skipCounter)
	}
}

func TestTickRespectsInstanceCap(t *testing.T) {
	reg := fleet.New()
	defer reg.Close()
	cfg := DefaultConfig()
	cfg.MaxInstances = 1
	l := NewLoop(cfg, reg, nil)

	reg.Insert(testShip("a", "jet", 5))
	reg.Insert(testShip("b", "jet", 5))
	reg.Insert(testShip("c", "airship", 5))
	f := l.Tick(context.Background(), 0)

	if len(f.Ships) != 2 {
		t.Fatalf("ships: got %d, want 2", len(f.Ships))
	}
	if _, ok := f.Ship("b"); ok {
		t.Fatalf("second jet exceeded the cap")
	}
}

func TestClickSelectsAndFollows(t *testing.T) {
	var sunk []string
	l, reg := newTestLoop(t, WithSelectSink(picking.SelectFunc(func(id string) { sunk = append(sunk, id) })))
	ctx := context.Background()

	reg.Insert(testShip("s1", "jet", 5))
	f := l.Tick(ctx, 0)

	ndc, ok := f.Camera.Project(core.Vec3{X: 5})
	if !ok {
		t.Fatalf("ship not in front of the camera")
	}
	if err := l.Enqueue(PointerCommand{Pointer: picking.Pointer{X: ndc.X, Y: ndc.Y}, Click: true}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	f = l.Tick(ctx, 0)
	if f.Selected != "s1" || f.Hovered != "s1" {
		t.Fatalf("after click: selected=%q hovered=%q, want s1", f.Selected, f.Hovered)
	}

	f = l.Tick(ctx, 0)
	if f.CameraMode != camera.Following.String() || f.Following != "s1" {
		t.Fatalf("camera: mode=%s following=%q", f.CameraMode, f.Following)
	}

	l.Enqueue(PointerCommand{Pointer: picking.Pointer{X: -0.95, Y: 0.95}, Click: true})
	f = l.Tick(ctx, 0)
	if f.Selected != "" || f.IsHovered() {
		t.Fatalf("click on empty space: selected=%q hovered=%q", f.Selected, f.Hovered)
	}
	if len(sunk) != 2 || sunk[0] != "s1" || sunk[1] != "" {
		t.Fatalf("sink: got %q", sunk)
	}
}

func TestSelectIgnoresShipsOutsideScene(t *testing.T) {
	l, reg := newTestLoop(t)
	ctx := context.Background()
	reg.Insert(testShip("known", "jet", 5))
	reg.Insert(testShip("unknown", "hovercraft", 5))
	l.Tick(ctx, 0)

	l.Enqueue(SelectCommand{ShipID: "unknown"})
	f := l.Tick(ctx, 0)
	if f.Selected != "" || f.CameraMode != camera.Free.String() {
		t.Fatalf("selecting a dropped ship: selected %q mode %q, want none/free", f.Selected, f.CameraMode)
	}

	// A ship inserted and selected before the same tick is admitted first.
	reg.Insert(testShip("fresh", "jet", 6))
	l.Enqueue(SelectCommand{ShipID: "fresh"})
	f = l.Tick(ctx, 0)
	if f.Selected != "fresh" || f.Following != "fresh" {
		t.Fatalf("select of new ship: selected %q following %q, want fresh", f.Selected, f.Following)
	}
}

func TestInteractionSuspendsCamera(t *testing.T) {
	l, reg := newTestLoop(t)
	ctx := context.Background()
	reg.Insert(testShip("s1", "jet", 5))
	l.Tick(ctx, 0)

	l.Enqueue(InteractionCommand{Active: true})
	l.Enqueue(SelectCommand{ShipID: "s1"})
	before := l.Tick(ctx, 0).Camera.Pose
	after := l.Tick(ctx, 0).Camera.Pose
	if before != after {
		t.Fatalf("camera moved while interacting: %+v -> %+v", before, after)
	}

	l.Enqueue(InteractionCommand{Active: false})
	if moved := l.Tick(ctx, 0).Camera.Pose; moved == after {
		t.Fatalf("camera did not resume after interaction ended")
	}
}

func TestPointerLeaveClearsHover(t *testing.T) {
	l, reg := newTestLoop(t)
	ctx := context.Background()
	reg.Insert(testShip("s1", "jet", 5))
	f := l.Tick(ctx, 0)

	ndc, _ := f.Camera.Project(core.Vec3{X: 5})
	l.Enqueue(PointerCommand{Pointer: picking.Pointer{X: ndc.X, Y: ndc.Y}})
	if f = l.Tick(ctx, 0); !f.IsHovered() {
		t.Fatalf("pointer over ship not hovered")
	}
	if f.Selected != "" {
		t.Fatalf("hover selected %q", f.Selected)
	}
	l.Enqueue(PointerCommand{Leave: true})
	if f = l.Tick(ctx, 0); f.IsHovered() {
		t.Fatalf("hover kept after pointer left")
	}
}

type fakeModels struct {
	mu     sync.Mutex
	cached map[string]*loader.Model
	loads  chan string
}

func (f *fakeModels) Cached(id string) (*loader.Model, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.cached[id]
	return m, ok
}

func (f *fakeModels) Load(_ context.Context, a model.Asset) (*loader.Model, error) {
	f.loads <- a.ID
	return nil, errors.New("not yet")
}

func (f *fakeModels) put(m *loader.Model) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached[m.AssetID] = m
}

func TestPlaceholderUpgradesWhenModelArrives(t *testing.T) {
	models := &fakeModels{cached: map[string]*loader.Model{}, loads: make(chan string, 4)}
	l, reg := newTestLoop(t, WithModels(models))
	ctx := context.Background()

	reg.Insert(testShip("s1", "jet", 5))
	reg.Insert(testShip("s2", "jet", 6))
	f := l.Tick(ctx, 0)
	v, _ := f.Ship("s1")
	if v.Placeholder != loader.PlaceholderIcon || v.IconPath == "" {
		t.Fatalf("placeholder: got %q icon=%q, want icon", v.Placeholder, v.IconPath)
	}

	select {
	case id := <-models.loads:
		if id != "jet" {
			t.Fatalf("load requested for %q, want jet", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no model load requested")
	}

	models.put(&loader.Model{AssetID: "jet"})
	f = l.Tick(ctx, 0)
	for _, id := range []string{"s1", "s2"} {
		if v, _ := f.Ship(id); v.Placeholder != loader.PlaceholderNone {
			t.Fatalf("%s still a placeholder after the model was cached", id)
		}
	}
	select {
	case id := <-models.loads:
		t.Fatalf("second load requested for %q", id)
	default:
	}
}

type flakyModels struct {
	mu     sync.Mutex
	cached map[string]*loader.Model
	loads  int
}

func (f *flakyModels) Cached(id string) (*loader.Model, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.cached[id]
	return m, ok
}

func (f *flakyModels) Load(_ context.Context, a model.Asset) (*loader.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loads == 1 {
		return nil, errors.New("cdn unavailable")
	}
	m := &loader.Model{AssetID: a.ID}
	f.cached[a.ID] = m
	return m, nil
}

func (f *flakyModels) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func TestFailedModelLoadIsRetried(t *testing.T) {
	models := &flakyModels{cached: map[string]*loader.Model{}}
	cfg := DefaultConfig()
	cfg.ModelRetry = time.Millisecond
	reg := fleet.New()
	t.Cleanup(reg.Close)
	l := NewLoop(cfg, reg, nil, WithModels(models))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg.Insert(testShip("s1", "jet", 5))
	deadline := time.Now().Add(3 * time.Second)
	for elapsed := 0.0; ; elapsed += 0.016 {
		f := l.Tick(ctx, elapsed)
		if v, ok := f.Ship("s1"); ok && v.Placeholder == loader.PlaceholderNone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("placeholder never upgraded after a failed load (loads=%d)", models.loadCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := models.loadCount(); got != 2 {
		t.Fatalf("loads: got %d, want 2", got)
	}
}

func TestFailedModelLoadWaitsBeforeRetry(t *testing.T) {
	models := &flakyModels{cached: map[string]*loader.Model{}}
	reg := fleet.New()
	t.Cleanup(reg.Close)
	l := NewLoop(DefaultConfig(), reg, nil, WithModels(models))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg.Insert(testShip("s1", "jet", 5))
	l.Tick(ctx, 0)
	deadline := time.Now().Add(2 * time.Second)
	for models.loadCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no model load started")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 20; i++ {
		l.Tick(ctx, float64(i))
		time.Sleep(time.Millisecond)
	}
	if got := models.loadCount(); got != 1 {
		t.Fatalf("loads within the retry window: got %d, want 1", got)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CommandBuffer = 1
	l := NewLoop(cfg, nil, nil)
	if err := l.Enqueue(SelectCommand{}); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if err := l.Enqueue(SelectCommand{}); !errors.Is(err, ErrCommandQueueFull) {
		t.Fatalf("second Enqueue: got %v, want ErrCommandQueueFull", err)
	}
}
