package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/starfleet/model"
)

// Propagator yields a ship's kinematic state at elapsed session time t
// (seconds).
type Propagator interface {
	Propagate(t float64) State
}

// StylisedOrbit follows the closed-form eccentric orbit.
type StylisedOrbit struct {
	Elements Elements
}

// Propagate evaluates the orbit at t.
func (o StylisedOrbit) Propagate(t float64) State {
	return PositionAndVelocity(o.Elements, t)
}

// DefaultTLEScale maps kilometres onto scene units so that a 400 km low
// Earth orbit lands in the free-ship layer.
const DefaultTLEScale = DefaultFreeRadius / (EarthRadiusKm + 400)

// SGP4Orbit propagates a two-line element set with SGP4. Session time is
// mapped to wall time as epoch + t*TimeScale.
type SGP4Orbit struct {
	sat       satellite.Satellite
	epoch     time.Time
	timeScale float64
	scale     float64
}

// NewSGP4Orbit parses the element lines. Malformed lines are reported as an
// error instead of a panic.
func NewSGP4Orbit(line1, line2 string, epoch time.Time, timeScale float64) (orbit *SGP4Orbit, err error) {
	defer func() {
		if r := recover(); r != nil {
			orbit, err = nil, fmt.Errorf("parse TLE: %v", r)
		}
	}()
	if timeScale <= 0 {
		timeScale = 1
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &SGP4Orbit{sat: sat, epoch: epoch.UTC(), timeScale: timeScale, scale: DefaultTLEScale}, nil
}

// Propagate runs SGP4 at whole-second resolution and advances the result
// by the velocity for the fractional remainder, so that per-frame motion
// stays smooth.
//
// go-satellite works in kilometres in an inertial frame with Z along the
// polar axis. The scene is Y-up, so ECI Z becomes scene Y and ECI Y becomes
// scene -Z.
func (m *SGP4Orbit) Propagate(t float64) State {
	simTime := m.epoch.Add(time.Duration(t * m.timeScale * float64(time.Second)))
	whole := simTime.Truncate(time.Second)
	frac := simTime.Sub(whole).Seconds()

	year, month, day := whole.Date()
	hour, min, sec := whole.Clock()
	posECI, velECI := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)

	pos := Vec3{
		X: posECI.X + velECI.X*frac,
		Y: posECI.Z + velECI.Z*frac,
		Z: -(posECI.Y + velECI.Y*frac),
	}
	vel := Vec3{X: velECI.X, Y: velECI.Z, Z: -velECI.Y}

	return State{
		Position: pos.Scale(m.scale),
		// km/s of simulated time -> scene units per session second.
		Velocity: vel.Scale(m.scale * m.timeScale),
		Theta:    math.Atan2(posECI.Y, posECI.X),
	}
}

// NewPropagator picks SGP4 for ships carrying a TLE and the stylised orbit
// otherwise. A TLE that fails to parse falls back to the stylised orbit.
func NewPropagator(s model.Ship, minSpeed float64, epoch time.Time, timeScale float64) Propagator {
	if s.HasTLE() {
		if orbit, err := NewSGP4Orbit(s.TLELine1, s.TLELine2, epoch, timeScale); err == nil {
			return orbit
		}
	}
	return StylisedOrbit{Elements: ElementsForShip(s, minSpeed)}
}
