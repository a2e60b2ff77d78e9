package picking

import "github.com/signalsfoundry/starfleet/camera"

// SelectSink receives the selected ship id; empty means nothing selected.
// The host renders its detail overlay from it.
type SelectSink interface {
	Select(shipID string)
}

// SelectFunc adapts a function to SelectSink.
type SelectFunc func(shipID string)

// Select calls f.
func (f SelectFunc) Select(shipID string) { f(shipID) }

// Controller tracks hover and selection. It is driven from the frame
// goroutine only.
type Controller struct {
	sink     SelectSink
	hovered  string
	selected string
}

// NewController writes selection changes to sink, which may be nil.
func NewController(sink SelectSink) *Controller {
	return &Controller{sink: sink}
}

// Move updates the hovered ship for a pointer move.
func (c *Controller) Move(p Pointer, cam camera.Camera, candidates []Candidate) (string, bool) {
	c.hovered, _ = Pick(p, cam, candidates)
	return c.hovered, c.hovered != ""
}

// Click commits the ship under the pointer as the selection. Clicking empty
// space clears it.
func (c *Controller) Click(p Pointer, cam camera.Camera, candidates []Candidate) (string, bool) {
	id, ok := Pick(p, cam, candidates)
	c.Select(id)
	return id, ok
}

// Select sets the selection directly.
func (c *Controller) Select(shipID string) {
	if shipID == c.selected {
		return
	}
	c.selected = shipID
	if c.sink != nil {
		c.sink.Select(shipID)
	}
}

// Hovered returns the ship under the pointer after the last Move.
func (c *Controller) Hovered() (string, bool) {
	return c.hovered, c.hovered != ""
}

// Selected returns the selected ship.
func (c *Controller) Selected() (string, bool) {
	return c.selected, c.selected != ""
}

// ClearHover forgets the hovered ship, e.g. when the pointer leaves the view.
func (c *Controller) ClearHover() {
	c.hovered = ""
}
