package core

import (
	"math"
	"testing"
)

func TestSegmentClearsSphere_NoObstruction(t *testing.T) {
	// Two ships on the same side of the planet, separated in Y.
	posA := Vec3{X: 6, Y: 0, Z: 0}
	posB := Vec3{X: 6, Y: 2, Z: 0}

	if !SegmentClearsSphere(posA, posB, PlanetRadius) {
		t.Errorf("expected segment on the same side of the planet to be clear")
	}
}

func TestSegmentClearsSphere_Obstructed(t *testing.T) {
	// Opposite sides: the chord passes through the planet.
	posA := Vec3{X: 5, Y: 0, Z: 0}
	posB := Vec3{X: -5, Y: 0, Z: 0}

	if SegmentClearsSphere(posA, posB, PlanetRadius) {
		t.Errorf("expected segment through the planet to be blocked")
	}
}

func TestSegmentClearsSphere_DegeneratePoint(t *testing.T) {
	if !SegmentClearsSphere(Vec3{X: 4}, Vec3{X: 4}, PlanetRadius) {
		t.Errorf("point outside the sphere should be clear")
	}
	if SegmentClearsSphere(Vec3{X: 1}, Vec3{X: 1}, PlanetRadius) {
		t.Errorf("point inside the sphere should be blocked")
	}
}

func TestVec3Helpers(t *testing.T) {
	v := Vec3{X: 3, Y: 4}
	if got := v.Norm(); got != 5 {
		t.Fatalf("Norm = %v, want 5", got)
	}
	if got := v.Normalize().Norm(); math.Abs(got-1) > 1e-12 {
		t.Fatalf("Normalize().Norm() = %v, want 1", got)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("zero Normalize = %+v, want zero", got)
	}
	if got := (Vec3{X: 1}).Cross(Vec3{Y: 1}); got != (Vec3{Z: 1}) {
		t.Fatalf("X cross Y = %+v, want +Z", got)
	}
	if got := (Vec3{}).Lerp(Vec3{X: 10}, 0.25); got != (Vec3{X: 2.5}) {
		t.Fatalf("Lerp = %+v, want (2.5,0,0)", got)
	}
	if (Vec3{X: math.NaN()}).IsFinite() {
		t.Fatalf("NaN vector reported finite")
	}
	if got := FromMgl(v.Mgl()); got != v {
		t.Fatalf("mgl round trip = %+v, want %+v", got, v)
	}
}
