package scene

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/internal/logging"
	"github.com/signalsfoundry/starfleet/internal/observability"
)

const (
	// DefaultLookAhead is how far ahead along the velocity a ship aims.
	DefaultLookAhead = 0.5
	// DefaultBankAmplitude is the peak roll in radians before the
	// per-vehicle bank factor.
	DefaultBankAmplitude = 0.15
)

// SkipRecorder counts ships left out of a frame.
type SkipRecorder interface {
	IncSkipped(reason string)
}

// UpdaterConfig tunes the motion pass.
type UpdaterConfig struct {
	LookAhead       float64
	BankAmplitude   float64
	MinSafeDistance float64
}

// DefaultUpdaterConfig returns the stock tuning.
func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{
		LookAhead:       DefaultLookAhead,
		BankAmplitude:   DefaultBankAmplitude,
		MinSafeDistance: core.MinSafeDistance(),
	}
}

// Updater advances every entity to the frame time and publishes positions
// into the context.
type Updater struct {
	cfg     UpdaterConfig
	scene   *Context
	log     logging.Logger
	metrics SkipRecorder
}

// NewUpdater builds an updater writing into scene. log and metrics may be
// nil.
func NewUpdater(cfg UpdaterConfig, scene *Context, log logging.Logger, metrics SkipRecorder) *Updater {
	if cfg.MinSafeDistance <= 0 {
		cfg.MinSafeDistance = core.MinSafeDistance()
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Updater{cfg: cfg, scene: scene, log: log, metrics: metrics}
}

// Update moves every entity to session time t and returns how many were
// updated. A failure in one entity is logged and counted; the rest still
// move.
func (u *Updater) Update(t float64, entities []*Entity) int {
	updated := 0
	for _, e := range entities {
		if err := u.updateOne(t, e); err != nil {
			u.log.Warn(context.Background(), "ship update failed",
				logging.String("ship_id", e.Ship.ID),
				logging.String("vehicle", e.AssetID),
				logging.Err(err),
			)
			continue
		}
		updated++
	}
	return updated
}

func (u *Updater) updateOne(t float64, e *Entity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			u.skip(observability.SkipPanic)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if e.Node == nil || e.Propagator == nil {
		u.skip(observability.SkipNoNode)
		return fmt.Errorf("no renderable object")
	}

	st := e.Propagator.Propagate(t)
	if !st.Position.IsFinite() {
		u.skip(observability.SkipNonFinite)
		return fmt.Errorf("non-finite position %+v", st.Position)
	}
	st.Position, _ = core.ClampToSafeRadius(st.Position, u.cfg.MinSafeDistance)

	bank := u.cfg.BankAmplitude * e.Correction.BankFactor
	if rot, ok := core.Heading(st, u.cfg.LookAhead, e.Correction.Quat(), bank); ok {
		e.rotation, e.oriented = rot, true
	}

	e.Node.SetTransform(st.Position, e.Rotation(), e.Correction.WorldScale())
	u.scene.SetPosition(e.Ship.ID, st.Position)
	return nil
}

func (u *Updater) skip(reason string) {
	if u.metrics != nil {
		u.metrics.IncSkipped(reason)
	}
}
