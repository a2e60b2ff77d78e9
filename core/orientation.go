package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldUp is the scene's vertical axis.
var WorldUp = Vec3{Y: 1}

// degenerateSpeed is the velocity magnitude below which no heading is
// defined.
const degenerateSpeed = 1e-9

// LookRotation returns the rotation that points an object's local +Z along
// forward with its +Y as close to up as possible. It reports false when
// forward has no usable length.
func LookRotation(forward, up Vec3) (mgl64.Quat, bool) {
	if forward.Norm() < degenerateSpeed {
		return mgl64.QuatIdent(), false
	}
	z := forward.Normalize()
	x := up.Cross(z)
	if x.Norm() < 1e-12 {
		// forward is parallel to up; nudge it so the basis stays defined.
		z = Vec3{X: z.X + 1e-4, Y: z.Y, Z: z.Z}.Normalize()
		x = up.Cross(z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	m := mgl64.Mat3FromCols(x.Mgl(), y.Mgl(), z.Mgl()).Mat4()
	return mgl64.Mat4ToQuat(m).Normalize(), true
}

// EulerXYZ builds a rotation from intrinsic X, then Y, then Z angles.
func EulerXYZ(x, y, z float64) mgl64.Quat {
	qx := mgl64.QuatRotate(x, mgl64.Vec3{1, 0, 0})
	qy := mgl64.QuatRotate(y, mgl64.Vec3{0, 1, 0})
	qz := mgl64.QuatRotate(z, mgl64.Vec3{0, 0, 1})
	return qx.Mul(qy).Mul(qz)
}

// Heading computes a ship's orientation from its state: face the look-ahead
// point along the velocity, apply the vehicle's model correction, then
// roll by amplitude*sin(theta). The bool is false when the velocity is too
// small to define a heading; callers keep the previous orientation.
func Heading(st State, lookAhead float64, correction mgl64.Quat, bankAmplitude float64) (mgl64.Quat, bool) {
	dir := st.Velocity.Normalize()
	if st.Velocity.Norm() < degenerateSpeed {
		return mgl64.QuatIdent(), false
	}
	if lookAhead <= 0 {
		lookAhead = 1
	}
	target := st.Position.Add(dir.Scale(lookAhead))
	look, ok := LookRotation(target.Sub(st.Position), WorldUp)
	if !ok {
		return mgl64.QuatIdent(), false
	}
	bank := mgl64.QuatRotate(bankAmplitude*math.Sin(st.Theta), mgl64.Vec3{0, 0, 1})
	return look.Mul(correction).Mul(bank).Normalize(), true
}
