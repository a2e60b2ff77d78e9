package camera

import (
	"github.com/signalsfoundry/starfleet/core"
)

// Defaults for the scene camera.
const (
	DefaultDistance       = 15.0
	CompactDistance       = 22.0
	CompactViewportWidth  = 768
	DefaultFollowDistance = 2.5
	DefaultFollowLift     = 0.8
	DefaultSmoothing      = 0.08
	DefaultEpsilon        = 1e-3
	DefaultFOV            = 45.0
	DefaultNear           = 0.1
	DefaultFar            = 1000.0
)

// Settings tunes the follow controller.
type Settings struct {
	DefaultDistance float64 `koanf:"default_distance" validate:"gt=0"`
	CompactDistance float64 `koanf:"compact_distance" validate:"gt=0"`
	CompactWidth    int     `koanf:"compact_width" validate:"gte=0"`
	FollowDistance  float64 `koanf:"follow_distance" validate:"gt=0"`
	FollowLift      float64 `koanf:"follow_lift"`
	Smoothing       float64 `koanf:"smoothing" validate:"gt=0,lte=1"`
	Epsilon         float64 `koanf:"epsilon" validate:"gt=0"`
	FOV             float64 `koanf:"fov" validate:"gt=0,lt=180"`
	Near            float64 `koanf:"near" validate:"gt=0"`
	Far             float64 `koanf:"far" validate:"gtfield=Near"`
}

// DefaultSettings returns the stock camera tuning.
func DefaultSettings() Settings {
	return Settings{
		DefaultDistance: DefaultDistance,
		CompactDistance: CompactDistance,
		CompactWidth:    CompactViewportWidth,
		FollowDistance:  DefaultFollowDistance,
		FollowLift:      DefaultFollowLift,
		Smoothing:       DefaultSmoothing,
		Epsilon:         DefaultEpsilon,
		FOV:             DefaultFOV,
		Near:            DefaultNear,
		Far:             DefaultFar,
	}
}

// Mode is the follow state.
type Mode int

const (
	Free Mode = iota
	Following
)

func (m Mode) String() string {
	if m == Following {
		return "following"
	}
	return "free"
}

// PositionLookup resolves a ship id to its current position.
type PositionLookup func(shipID string) (core.Vec3, bool)

// Follow eases the camera toward its goal pose every tick. While the user
// is interacting, automatic motion is suspended.
type Follow struct {
	settings    Settings
	cam         Camera
	mode        Mode
	shipID      string
	interacting bool
	compact     bool
}

// NewFollow starts in Free mode at the default pose.
func NewFollow(s Settings) *Follow {
	f := &Follow{settings: s}
	f.cam = Camera{
		FOVDeg: s.FOV,
		Aspect: 16.0 / 9.0,
		Near:   s.Near,
		Far:    s.Far,
	}
	f.cam.Pose = f.defaultPose()
	return f
}

// SetViewport updates the aspect ratio and whether the compact default
// distance applies. The camera is not moved; the next Update eases there.
func (f *Follow) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		f.cam.Aspect = float64(width) / float64(height)
	}
	f.compact = width > 0 && width < f.settings.CompactWidth
}

// Follow targets a ship. An empty id returns to the default view.
func (f *Follow) Follow(shipID string) {
	if shipID == "" {
		f.mode, f.shipID = Free, ""
		return
	}
	f.mode, f.shipID = Following, shipID
}

// Target returns the followed ship id, if any.
func (f *Follow) Target() (string, bool) {
	return f.shipID, f.mode == Following
}

// Mode reports the follow state.
func (f *Follow) Mode() Mode {
	return f.mode
}

// SetInteracting suspends or resumes automatic motion.
func (f *Follow) SetInteracting(active bool) {
	f.interacting = active
}

// Interacting reports whether automatic motion is suspended.
func (f *Follow) Interacting() bool {
	return f.interacting
}

// Camera returns the current camera.
func (f *Follow) Camera() Camera {
	return f.cam
}

// SetPose moves the camera directly, as a user drag would.
func (f *Follow) SetPose(p Pose) {
	f.cam.Pose = p
}

// Goal returns the pose the controller is easing toward.
func (f *Follow) Goal(lookup PositionLookup) Pose {
	if f.mode == Following && lookup != nil {
		if pos, ok := lookup(f.shipID); ok {
			radial := pos.Normalize()
			if radial.Norm() == 0 {
				radial = core.Vec3{Z: 1}
			}
			return Pose{
				Position: pos.Add(radial.Scale(f.settings.FollowDistance)).Add(core.WorldUp.Scale(f.settings.FollowLift)),
				Target:   pos,
			}
		}
		// Followed ship has no position yet: hold still.
		return f.cam.Pose
	}
	return f.defaultPose()
}

// Update advances the camera one tick and reports whether it moved.
func (f *Follow) Update(lookup PositionLookup) bool {
	if f.interacting {
		return false
	}
	goal := f.Goal(lookup)
	var moved bool
	f.cam.Position, moved = f.ease(f.cam.Position, goal.Position)
	var movedTarget bool
	f.cam.Target, movedTarget = f.ease(f.cam.Target, goal.Target)
	return moved || movedTarget
}

func (f *Follow) ease(cur, goal core.Vec3) (core.Vec3, bool) {
	delta := goal.Sub(cur)
	if delta.Norm() <= f.settings.Epsilon {
		return cur, false
	}
	return cur.Add(delta.Scale(f.settings.Smoothing)), true
}

func (f *Follow) defaultPose() Pose {
	d := f.settings.DefaultDistance
	if f.compact {
		d = f.settings.CompactDistance
	}
	return Pose{Position: core.Vec3{Z: d}}
}
