// Package scene runs the per-frame pipeline: it admits new ships, moves and
// orients every ship, drives the camera, resolves hover and selection, lays
// out labels and publishes an immutable frame snapshot.
package scene

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/starfleet/assets"
	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/loader"
	"github.com/signalsfoundry/starfleet/model"
	"github.com/signalsfoundry/starfleet/picking"
)

// DefaultMaxInstances caps the rendered ships per vehicle type.
const DefaultMaxInstances = 200

var (
	// ErrDuplicateShip is returned when a ship is registered twice.
	ErrDuplicateShip = errors.New("ship already registered")
	// ErrInstanceCap is returned when a vehicle type has no free instances.
	ErrInstanceCap = errors.New("vehicle instance cap reached")
)

// ObjectID identifies one renderable object.
type ObjectID uint64

// Entity is a live ship bound to its renderable object.
type Entity struct {
	Ship       model.Ship
	AssetID    string
	Object     ObjectID
	Propagator core.Propagator
	Correction assets.Correction
	Model      *loader.Model
	Node       Node

	rotation mgl64.Quat
	oriented bool
}

// Rotation returns the orientation applied on the last frame.
func (e *Entity) Rotation() mgl64.Quat {
	if !e.oriented {
		return mgl64.QuatIdent()
	}
	return e.rotation
}

// Context is the frame state shared by the updater, camera, picking and
// label layout. Only the frame goroutine touches it.
type Context struct {
	maxInstances int

	positions map[string]core.Vec3
	entities  map[string]*Entity
	order     []*Entity
	objects   map[ObjectID]string
	instances map[string]int
	next      ObjectID
}

// NewContext returns an empty context. maxInstances <= 0 selects
// DefaultMaxInstances.
func NewContext(maxInstances int) *Context {
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}
	return &Context{
		maxInstances: maxInstances,
		positions:    make(map[string]core.Vec3),
		entities:     make(map[string]*Entity),
		objects:      make(map[ObjectID]string),
		instances:    make(map[string]int),
	}
}

// Register binds an entity to a new object id.
func (c *Context) Register(e *Entity) (ObjectID, error) {
	if _, dup := c.entities[e.Ship.ID]; dup {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateShip, e.Ship.ID)
	}
	if c.instances[e.AssetID] >= c.maxInstances {
		return 0, fmt.Errorf("%w: %s", ErrInstanceCap, e.AssetID)
	}
	c.next++
	e.Object = c.next
	c.entities[e.Ship.ID] = e
	c.order = append(c.order, e)
	c.objects[e.Object] = e.Ship.ID
	c.instances[e.AssetID]++
	return e.Object, nil
}

// HasCapacity reports whether another ship of the vehicle type fits.
func (c *Context) HasCapacity(assetID string) bool {
	return c.instances[assetID] < c.maxInstances
}

// Instances returns the number of registered ships of a vehicle type.
func (c *Context) Instances(assetID string) int {
	return c.instances[assetID]
}

// Entity returns the entity of a ship.
func (c *Context) Entity(shipID string) (*Entity, bool) {
	e, ok := c.entities[shipID]
	return e, ok
}

// Entities returns every entity in registration order. The slice is shared;
// callers must not modify it.
func (c *Context) Entities() []*Entity {
	return c.order
}

// Len returns the number of registered entities.
func (c *Context) Len() int {
	return len(c.order)
}

// ShipForObject maps an object id back to its ship.
func (c *Context) ShipForObject(id ObjectID) (string, bool) {
	s, ok := c.objects[id]
	return s, ok
}

// SetPosition publishes a ship's position for the current frame.
func (c *Context) SetPosition(shipID string, p core.Vec3) {
	c.positions[shipID] = p
}

// Position returns a ship's latest published position.
func (c *Context) Position(shipID string) (core.Vec3, bool) {
	p, ok := c.positions[shipID]
	return p, ok
}

// Candidates returns the pick volumes of every positioned entity.
func (c *Context) Candidates() []picking.Candidate {
	out := make([]picking.Candidate, 0, len(c.order))
	for _, e := range c.order {
		p, ok := c.positions[e.Ship.ID]
		if !ok {
			continue
		}
		out = append(out, picking.Candidate{ShipID: e.Ship.ID, Center: p, Radius: e.Correction.PickRadius})
	}
	return out
}
