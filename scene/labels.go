package scene

import (
	"math"

	"github.com/signalsfoundry/starfleet/camera"
	"github.com/signalsfoundry/starfleet/core"
)

// LabelLift raises a label's anchor above its ship.
const LabelLift = 1.2

// Label is a ship's overlay position in normalized device coordinates.
type Label struct {
	ShipID  string  `json:"ship_id"`
	Text    string  `json:"text"`
	Tagline string  `json:"tagline,omitempty"`
	IconURL string  `json:"icon_url,omitempty"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Depth   float64 `json:"depth"`
	Visible bool    `json:"visible"`
}

// LayoutLabels places one label per positioned entity. A label is hidden
// when its anchor is outside the view or the planet blocks the line of
// sight to it.
func LayoutLabels(cam camera.Camera, scene *Context, planetRadius float64) []Label {
	out := make([]Label, 0, scene.Len())
	for _, e := range scene.Entities() {
		p, ok := scene.Position(e.Ship.ID)
		if !ok {
			continue
		}
		l := Label{ShipID: e.Ship.ID, Text: e.Ship.Name, Tagline: e.Ship.Tagline, IconURL: e.Ship.IconURL}
		l.X, l.Y, l.Depth, l.Visible = placeLabel(cam, p, planetRadius)
		out = append(out, l)
	}
	return out
}

func placeLabel(cam camera.Camera, pos core.Vec3, planetRadius float64) (x, y, depth float64, visible bool) {
	anchor := pos.Add(core.Vec3{Y: LabelLift})
	ndc, ok := cam.Project(anchor)
	if !ok {
		return 0, 0, 0, false
	}
	inView := math.Abs(ndc.X) <= 1 && math.Abs(ndc.Y) <= 1 && ndc.Z >= -1 && ndc.Z <= 1
	visible = inView && core.SegmentClearsSphere(cam.Position, anchor, planetRadius)
	return ndc.X, ndc.Y, ndc.Z, visible
}
