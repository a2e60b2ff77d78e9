package scene

import "github.com/signalsfoundry/starfleet/picking"

// Command is a host input applied at the start of the next tick.
type Command interface {
	apply(l *Loop)
}

// PointerCommand moves the pointer. Click also commits the ship under it as
// the selection; Leave means the pointer left the view.
type PointerCommand struct {
	Pointer picking.Pointer
	Click   bool
	Leave   bool
}

func (c PointerCommand) apply(l *Loop) {
	if c.Leave {
		l.hasPointer = false
		return
	}
	l.pointer, l.hasPointer = c.Pointer, true
	if c.Click {
		l.clicks = append(l.clicks, c.Pointer)
	}
}

// SelectCommand selects a ship directly; an empty id deselects. It resolves
// after the tick admits new ships, and an id the scene does not hold is
// ignored.
type SelectCommand struct {
	ShipID string
}

func (c SelectCommand) apply(l *Loop) {
	id := c.ShipID
	l.pendingSelect = &id
}

// InteractionCommand marks the start or end of a user camera drag.
type InteractionCommand struct {
	Active bool
}

func (c InteractionCommand) apply(l *Loop) {
	l.follow.SetInteracting(c.Active)
}

// ViewportCommand reports the renderer's viewport size in pixels.
type ViewportCommand struct {
	Width  int
	Height int
}

func (c ViewportCommand) apply(l *Loop) {
	l.follow.SetViewport(c.Width, c.Height)
}
