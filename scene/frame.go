package scene

import (
	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/loader"
)

// Frame is an immutable snapshot of one tick. It is the only value read
// outside the frame goroutine.
type Frame struct {
	Seq         uint64        `json:"seq"`
	Elapsed     float64       `json:"elapsed"`
	Ships       []ShipView    `json:"ships"`
	Labels      []Label       `json:"labels"`
	Camera      camera.Camera `json:"camera"`
	CameraMode  string        `json:"camera_mode"`
	Following   string        `json:"following,omitempty"`
	Interacting bool          `json:"interacting"`
	Selected    string        `json:"selected,omitempty"`
	Hovered     string        `json:"hovered,omitempty"`
}

// ShipView is one rendered ship in a frame.
type ShipView struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	AssetID     string                 `json:"asset_id"`
	Object      ObjectID               `json:"object"`
	Transform   Transform              `json:"transform"`
	Placeholder loader.PlaceholderKind `json:"placeholder,omitempty"`
	IconPath    string                 `json:"icon_path,omitempty"`
}

// Ship returns the view of a ship in the frame.
func (f *Frame) Ship(id string) (ShipView, bool) {
	if f == nil {
		return ShipView{}, false
	}
	for _, s := range f.Ships {
		if s.ID == id {
			return s, true
		}
	}
	return ShipView{}, false
}

// IsHovered reports whether the pointer is over any ship.
func (f *Frame) IsHovered() bool {
	return f != nil && f.Hovered != ""
}

func viewOf(e *Entity, scene *Context) ShipView {
	v := ShipView{ID: e.Ship.ID, Name: e.Ship.Name, AssetID: e.AssetID, Object: e.Object}
	if t, ok := e.Node.(transformer); ok {
		v.Transform = t.Transform()
	} else {
		p, _ := scene.Position(e.Ship.ID)
		q := e.Rotation()
		v.Transform = Transform{
			Position: p,
			Rotation: [4]float64{q.V[0], q.V[1], q.V[2], q.W},
			Scale:    e.Correction.WorldScale(),
		}
	}
	if e.Model.IsPlaceholder() {
		v.Placeholder = e.Model.Placeholder
		v.IconPath = e.Model.IconPath
	}
	return v
}
