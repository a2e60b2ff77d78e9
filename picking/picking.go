// Package picking resolves a pointer position to the ship under it.
package picking

import (
	"math"

	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/model"
)

// Pointer is a position in normalized device coordinates: x and y in
// [-1, 1], +y up.
type Pointer struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Candidate is a pickable ship object approximated by a bounding sphere.
// The planet and the starfield are never candidates.
type Candidate struct {
	ShipID string
	Center core.Vec3
	Radius float64
}

// Pick casts a ray from the camera through p and returns the ship whose
// bounding sphere it hits first. Ties go to the earlier candidate.
func Pick(p Pointer, cam camera.Camera, candidates []Candidate) (string, bool) {
	origin, dir := cam.Ray(p.X, p.Y)

	best := math.Inf(1)
	var hit string
	for _, c := range candidates {
		t, ok := raySphere(origin, dir, c.Center, c.Radius)
		if ok && t < best {
			best, hit = t, c.ShipID
		}
	}
	return hit, hit != ""
}

// ShipLookup resolves a ship id against the live registry.
type ShipLookup func(id string) (model.Ship, bool)

// PickShip is Pick followed by a registry lookup.
func PickShip(p Pointer, cam camera.Camera, candidates []Candidate, ships ShipLookup) (model.Ship, bool) {
	id, ok := Pick(p, cam, candidates)
	if !ok || ships == nil {
		return model.Ship{}, false
	}
	return ships(id)
}

// raySphere returns the distance along a unit ray to its first
// intersection with the sphere, including when the origin is inside it.
func raySphere(origin, dir, center core.Vec3, radius float64) (float64, bool) {
	if radius <= 0 {
		return 0, false
	}
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	s := math.Sqrt(disc)
	if t := -b - s; t >= 0 {
		return t, true
	}
	if t := -b + s; t >= 0 {
		return t, true
	}
	return 0, false
}
