package core

import (
	"math"

	"github.com/signalsfoundry/starfleet/model"
)

const (
	// PlanetRadius is the radius of the stylised planet at the origin.
	PlanetRadius = 3.0
	// SafetyMargin keeps ships clear of the atmosphere shell.
	SafetyMargin = 0.3
	// MinAngularSpeed is the slowest a ship may revolve (rad/s).
	MinAngularSpeed = 0.02

	DefaultEccentricity = 0.05
	DefaultInclination  = 0.25
	DefaultFreeRadius   = 4.5
	DefaultPaidRadius   = 7.0

	// Legacy rows derived speed from radius: 0.25 / radius.
	defaultSpeedFactor = 0.25
)

// MinSafeDistance is the closest a ship may come to the planet centre.
func MinSafeDistance() float64 {
	return PlanetRadius + SafetyMargin
}

// Elements is the parameter set defining one ship's stylised path.
type Elements struct {
	Radius        float64
	Inclination   float64
	Phase         float64
	AscendingNode float64
	Eccentricity  float64
	AngularSpeed  float64
}

// State is a ship's kinematic state at one instant.
type State struct {
	Position Vec3
	Velocity Vec3
	Theta    float64
}

// PositionAndVelocity evaluates the orbit at elapsed session time t.
//
// theta = phase + w t drives an eccentric radius r = R(1 - e cos theta).
// The in-plane point is rotated by the ascending node and then tilted by
// the inclination (y splits into y/z). Velocity is the exact time
// derivative of the same chain. No Kepler equation is solved.
func PositionAndVelocity(e Elements, t float64) State {
	w := e.AngularSpeed
	theta := e.Phase + w*t
	sinT, cosT := math.Sincos(theta)

	r := e.Radius * (1 - e.Eccentricity*cosT)
	dr := e.Radius * e.Eccentricity * sinT * w

	xOrb := r * cosT
	yOrb := r * sinT
	dxOrb := dr*cosT - r*sinT*w
	dyOrb := dr*sinT + r*cosT*w

	sinN, cosN := math.Sincos(e.AscendingNode)
	xTmp := xOrb*cosN - yOrb*sinN
	yTmp := xOrb*sinN + yOrb*cosN
	dxTmp := dxOrb*cosN - dyOrb*sinN
	dyTmp := dxOrb*sinN + dyOrb*cosN

	sinI, cosI := math.Sincos(e.Inclination)
	return State{
		Position: Vec3{X: xTmp, Y: yTmp * cosI, Z: yTmp * sinI},
		Velocity: Vec3{X: dxTmp, Y: dyTmp * cosI, Z: dyTmp * sinI},
		Theta:    theta,
	}
}

// EffectiveAngularSpeed lifts |w| up to floor while keeping its sign. An exact
// zero revolves in the positive direction.
func EffectiveAngularSpeed(w, floor float64) float64 {
	if math.Abs(w) >= floor {
		return w
	}
	if w < 0 {
		return -floor
	}
	return floor
}

// ClampToSafeRadius pushes p radially outward to distance minDist when it sits
// closer to the origin, preserving its direction. The second result
// reports whether a clamp happened. A point exactly at the origin has no
// direction and is moved onto +X.
func ClampToSafeRadius(p Vec3, minDist float64) (Vec3, bool) {
	d := p.Norm()
	if d >= minDist {
		return p, false
	}
	if d == 0 {
		return Vec3{X: minDist}, true
	}
	return p.Scale(minDist / d), true
}

// ElementsForShip resolves a ship record into concrete elements, filling
// defaults for legacy rows and applying the angular speed floor.
func ElementsForShip(s model.Ship, minSpeed float64) Elements {
	radius := DefaultFreeRadius
	if s.Tier() == model.PricePaid {
		radius = DefaultPaidRadius
	}
	if s.OrbitRadius != nil && *s.OrbitRadius > 0 && !math.IsInf(*s.OrbitRadius, 0) {
		radius = *s.OrbitRadius
	}

	e := Elements{
		Radius:        radius,
		Inclination:   valueOr(s.Inclination, DefaultInclination),
		Phase:         valueOr(s.Phase, 0),
		AscendingNode: valueOr(s.AscendingNode, 0),
		Eccentricity:  valueOr(s.Eccentricity, DefaultEccentricity),
		AngularSpeed:  valueOr(s.AngularSpeed, defaultSpeedFactor/radius),
	}
	e.AngularSpeed = EffectiveAngularSpeed(e.AngularSpeed, minSpeed)
	return e
}

func valueOr(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}
