package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/starfleet/core"
	"github.com/signalsfoundry/starfleet/loader"
	"github.com/signalsfoundry/starfleet/model"
)

// Node is the renderable object of one ship. The updater writes its full
// transform once per frame.
type Node interface {
	SetTransform(position core.Vec3, rotation mgl64.Quat, scale float64)
}

// NodeFactory creates the node for a ship once its model is resolved. A nil
// node leaves the ship unrendered.
type NodeFactory func(ship model.Ship, m *loader.Model) Node

// Transform is a node's world transform. Rotation is a unit quaternion in
// x, y, z, w order.
type Transform struct {
	Position core.Vec3  `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Scale    float64    `json:"scale"`
}

// Quat returns the rotation as a mathgl quaternion.
func (t Transform) Quat() mgl64.Quat {
	return mgl64.Quat{W: t.Rotation[3], V: mgl64.Vec3{t.Rotation[0], t.Rotation[1], t.Rotation[2]}}
}

// DataNode records the transform for the host renderer, which reads it from
// published frames.
type DataNode struct {
	transform Transform
	updates   uint64
}

// NewDataNode is the default NodeFactory.
func NewDataNode(model.Ship, *loader.Model) Node {
	return &DataNode{transform: Transform{Rotation: [4]float64{0, 0, 0, 1}, Scale: 1}}
}

// SetTransform implements Node.
func (n *DataNode) SetTransform(position core.Vec3, rotation mgl64.Quat, scale float64) {
	n.transform = Transform{
		Position: position,
		Rotation: [4]float64{rotation.V[0], rotation.V[1], rotation.V[2], rotation.W},
		Scale:    scale,
	}
	n.updates++
}

// Transform returns the last transform written.
func (n *DataNode) Transform() Transform {
	return n.transform
}

// Updates counts SetTransform calls.
func (n *DataNode) Updates() uint64 {
	return n.updates
}

type transformer interface {
	Transform() Transform
}
