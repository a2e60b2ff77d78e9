package core

import (
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/starfleet/model"
)

// Orbit bands per vehicle category. Aircraft fly the low atmospheric
// layer, spaceships the outer one.
var (
	aircraftBand  = [2]float64{4, 5}
	spaceshipBand = [2]float64{6, 8}
)

const (
	radiusJitter       = 0.5
	maxInclination     = 0.25
	maxAssignedEccentr = 0.08
)

// AssignElements draws orbital elements for a newly launched ship of the
// given vehicle. The radius is jittered around the asset's layer and kept
// inside its category band; speed follows 0.25 / radius.
func AssignElements(asset model.Asset, rng *rand.Rand) Elements {
	band := aircraftBand
	if asset.Category == model.CategorySpaceship {
		band = spaceshipBand
	}

	center := asset.Radius
	if center <= 0 {
		center = (band[0] + band[1]) / 2
	}
	radius := center + (rng.Float64()*2-1)*radiusJitter
	radius = math.Max(band[0], math.Min(band[1], radius))

	return Elements{
		Radius:        radius,
		Inclination:   (rng.Float64()*2 - 1) * maxInclination,
		Phase:         rng.Float64() * 2 * math.Pi,
		AscendingNode: rng.Float64() * 2 * math.Pi,
		Eccentricity:  rng.Float64() * maxAssignedEccentr,
		AngularSpeed:  defaultSpeedFactor / radius,
	}
}

// Apply copies the elements onto a ship record.
func (e Elements) Apply(s *model.Ship) {
	s.OrbitRadius = model.Float(e.Radius)
	s.Inclination = model.Float(e.Inclination)
	s.Phase = model.Float(e.Phase)
	s.AscendingNode = model.Float(e.AscendingNode)
	s.Eccentricity = model.Float(e.Eccentricity)
	s.AngularSpeed = model.Float(e.AngularSpeed)
}
