package camera

import (
	"math"
	"testing"

	"github.com/signalsfoundry/starfleet/core"
)

func lookupAt(id string, p core.Vec3) PositionLookup {
	return func(shipID string) (core.Vec3, bool) {
		if shipID == id {
			return p, true
		}
		return core.Vec3{}, false
	}
}

func TestFollowStartsAtDefaultPose(t *testing.T) {
	f := NewFollow(DefaultSettings())
	cam := f.Camera()
	if cam.Position != (core.Vec3{Z: 15}) || cam.Target != (core.Vec3{}) {
		t.Fatalf("default pose: got %+v", cam.Pose)
	}
	if cam.FOVDeg != 45 {
		t.Fatalf("fov: got %v, want 45", cam.FOVDeg)
	}
	if f.Update(nil) {
		t.Fatalf("camera at rest should not move")
	}
}

func TestFollowCompactViewportBacksOff(t *testing.T) {
	f := NewFollow(DefaultSettings())
	f.SetViewport(400, 800)
	if got := f.Goal(nil).Position; got != (core.Vec3{Z: 22}) {
		t.Fatalf("compact goal: got %+v, want z=22", got)
	}
	if math.Abs(f.Camera().Aspect-0.5) > 1e-12 {
		t.Fatalf("aspect: got %v, want 0.5", f.Camera().Aspect)
	}
}

func TestFollowConvergesOnShip(t *testing.T) {
	s := DefaultSettings()
	f := NewFollow(s)
	ship := core.Vec3{X: 6}
	lookup := lookupAt("s1", ship)
	f.Follow("s1")

	goal := f.Goal(lookup)
	wantPos := core.Vec3{X: 6 + s.FollowDistance, Y: s.FollowLift}
	if goal.Target != ship || goal.Position.DistanceTo(wantPos) > 1e-12 {
		t.Fatalf("follow goal: got %+v, want pos %+v target %+v", goal, wantPos, ship)
	}

	// One step covers Smoothing of the remaining distance.
	before := f.Camera().Position.DistanceTo(goal.Position)
	f.Update(lookup)
	after := f.Camera().Position.DistanceTo(goal.Position)
	if math.Abs(after-before*(1-s.Smoothing)) > 1e-9 {
		t.Fatalf("one step: remaining %v, want %v", after, before*(1-s.Smoothing))
	}

	steps := 0
	for f.Update(lookup) {
		steps++
		if steps > 10000 {
			t.Fatalf("camera never settled")
		}
	}
	cam := f.Camera()
	if cam.Position.DistanceTo(goal.Position) > s.Epsilon || cam.Target.DistanceTo(goal.Target) > s.Epsilon {
		t.Fatalf("settled pose %+v too far from goal %+v", cam.Pose, goal)
	}
	// Within epsilon nothing moves.
	if f.Update(lookup) {
		t.Fatalf("camera kept moving inside epsilon")
	}
}

func TestFollowInteractionSuspendsMotion(t *testing.T) {
	f := NewFollow(DefaultSettings())
	f.Follow("s1")
	f.SetInteracting(true)
	dragged := Pose{Position: core.Vec3{X: 1, Y: 2, Z: 3}}
	f.SetPose(dragged)

	if f.Update(lookupAt("s1", core.Vec3{X: 6})) {
		t.Fatalf("camera moved while interacting")
	}
	if f.Camera().Pose != dragged {
		t.Fatalf("pose changed while interacting: %+v", f.Camera().Pose)
	}

	f.SetInteracting(false)
	if !f.Update(lookupAt("s1", core.Vec3{X: 6})) {
		t.Fatalf("camera did not resume after interaction")
	}
}

func TestFollowRetargetWithoutJump(t *testing.T) {
	s := DefaultSettings()
	f := NewFollow(s)
	lookup := func(id string) (core.Vec3, bool) {
		switch id {
		case "a":
			return core.Vec3{X: 6}, true
		case "b":
			return core.Vec3{X: -6}, true
		}
		return core.Vec3{}, false
	}
	f.Follow("a")
	for i := 0; i < 20; i++ {
		f.Update(lookup)
	}
	before := f.Camera().Position

	f.Follow("b")
	f.Update(lookup)
	step := f.Camera().Position.DistanceTo(before)
	remaining := before.DistanceTo(f.Goal(lookup).Position)
	if math.Abs(step-remaining*s.Smoothing) > 1e-9 {
		t.Fatalf("retarget jumped %v (remaining %v)", step, remaining)
	}

	f.Follow("")
	if f.Mode() != Free {
		t.Fatalf("mode after deselect: got %v, want free", f.Mode())
	}
	if _, ok := f.Target(); ok {
		t.Fatalf("deselect should clear the follow target")
	}
}

func TestFollowHoldsWhenShipUnknown(t *testing.T) {
	f := NewFollow(DefaultSettings())
	f.Follow("ghost")
	if f.Update(lookupAt("other", core.Vec3{X: 5})) {
		t.Fatalf("camera moved toward an unknown ship")
	}
}
