package assets

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/starfleet/core"
)

// BaseScale is the uniform scale applied to every vehicle model.
const BaseScale = 0.06

// Correction compensates for a model's authored pose. Models disagree on
// which local axis is "forward"; Rotation (Euler XYZ, radians) maps the
// model's forward onto +Z before the velocity heading is applied.
type Correction struct {
	Scale      float64
	Rotation   [3]float64
	BankFactor float64
	PickRadius float64
}

// Quat returns the correction rotation.
func (c Correction) Quat() mgl64.Quat {
	return core.EulerXYZ(c.Rotation[0], c.Rotation[1], c.Rotation[2])
}

// WorldScale is the final uniform scale for the model.
func (c Correction) WorldScale() float64 {
	return BaseScale * c.Scale
}

// DefaultCorrection applies to any vehicle without its own entry.
var DefaultCorrection = Correction{Scale: 1, BankFactor: 1, PickRadius: 0.35}

// Corrections is a tagged lookup of per-vehicle pose corrections with an
// explicit default entry.
type Corrections struct {
	Default Correction
	ByID    map[string]Correction
}

// For returns the correction for a vehicle id, or the default entry.
func (c Corrections) For(id string) Correction {
	if corr, ok := c.ByID[id]; ok {
		return corr
	}
	return c.Default
}

// DefaultCorrections returns the stock table.
func DefaultCorrections() Corrections {
	return Corrections{
		Default: DefaultCorrection,
		ByID: map[string]Correction{
			// Authored nose-down along -Y.
			"jet": {Scale: 1.2, Rotation: [3]float64{-math.Pi / 2, 0, 0}, BankFactor: 1.5, PickRadius: 0.4},
			// Envelope points along +X and should not roll much.
			"airship":           {Scale: 1.4, Rotation: [3]float64{0, -math.Pi / 2, 0}, BankFactor: 0.3, PickRadius: 0.5},
			"air-police":        {Scale: 0.9, Rotation: [3]float64{0, math.Pi, 0}, BankFactor: 1.2, PickRadius: 0.35},
			"colored-freighter": {Scale: 0.8, Rotation: [3]float64{0, math.Pi, 0}, BankFactor: 0.5, PickRadius: 0.45},
			"x-wing":            {Scale: 0.7, Rotation: [3]float64{0, math.Pi, 0}, BankFactor: 1, PickRadius: 0.35},
			"x-wing-2":          {Scale: 0.7, Rotation: [3]float64{0, math.Pi, 0}, BankFactor: 1, PickRadius: 0.35},
		},
	}
}
