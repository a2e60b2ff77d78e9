// Package camera holds the scene camera and the controller that eases it
// toward the default view or a followed ship.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/starfleet/core"
)

// Pose is where the camera sits and what it looks at.
type Pose struct {
	Position core.Vec3 `json:"position"`
	Target   core.Vec3 `json:"target"`
}

// Camera is a perspective camera with world-up +Y.
type Camera struct {
	Pose
	FOVDeg float64 `json:"fov_deg"`
	Aspect float64 `json:"aspect"`
	Near   float64 `json:"near"`
	Far    float64 `json:"far"`
}

// View returns the world-to-camera matrix.
func (c Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position.Mgl(), c.Target.Mgl(), core.WorldUp.Mgl())
}

// Projection returns the camera-to-clip matrix.
func (c Camera) Projection() mgl64.Mat4 {
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	return mgl64.Perspective(mgl64.DegToRad(c.FOVDeg), aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c Camera) ViewProjection() mgl64.Mat4 {
	return c.Projection().Mul4(c.View())
}

// Project maps a world point to normalized device coordinates. ok is false
// for points behind the camera.
func (c Camera) Project(p core.Vec3) (ndc core.Vec3, ok bool) {
	clip := c.ViewProjection().Mul4x1(p.Mgl().Vec4(1))
	w := clip.W()
	if w <= 1e-12 {
		return core.Vec3{}, false
	}
	return core.Vec3{X: clip.X() / w, Y: clip.Y() / w, Z: clip.Z() / w}, true
}

// Ray returns the world-space ray from the camera through an NDC point
// (x, y in [-1, 1], +Y up). dir is unit length.
func (c Camera) Ray(x, y float64) (origin, dir core.Vec3) {
	inv := c.ViewProjection().Inv()
	near := unproject(inv, x, y, -1)
	far := unproject(inv, x, y, 1)
	d := far.Sub(near).Normalize()
	if d.Norm() == 0 {
		d = c.Target.Sub(c.Position).Normalize()
	}
	return c.Position, d
}

func unproject(inv mgl64.Mat4, x, y, z float64) core.Vec3 {
	v := inv.Mul4x1(mgl64.Vec4{x, y, z, 1})
	w := v.W()
	if math.Abs(w) < 1e-12 {
		w = 1e-12
	}
	return core.Vec3{X: v.X() / w, Y: v.Y() / w, Z: v.Z() / w}
}
