package nodes

import "fmt"

// Capability identifies an operation a resource node supports.
// A node advertises its capabilities once at discovery; the controller
// validates them against the role the node is bound to.
type Capability string

const (
	// CapabilityListItems allows listing occupied item slots.
	CapabilityListItems Capability = "list-items"

	// CapabilityListTanks allows listing occupied fluid tanks.
	CapabilityListTanks Capability = "list-tanks"

	// CapabilityPushItems allows pushing an item slot to another node.
	CapabilityPushItems Capability = "push-items"

	// CapabilityPushFluid allows pushing a tank's contents to another node.
	CapabilityPushFluid Capability = "push-fluid"

	// CapabilitySetMode allows setting the node's processing mode parameter.
	CapabilitySetMode Capability = "set-mode-parameter"

	// CapabilityCoordinate allows reading the node's spatial coordinate.
	CapabilityCoordinate Capability = "get-coordinate"

	// CapabilityIdentityTag allows reading the node's identity tag.
	CapabilityIdentityTag Capability = "get-identity-tag"
)

// Coordinate is a node's position in the 3D grid the gateway reports.
type Coordinate struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Add returns the coordinate offset by o.
func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// String returns the coordinate in (x,y,z) form.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// ItemStack describes one occupied item slot on a node.
type ItemStack struct {
	// Slot is the slot index on the node.
	Slot int `json:"slot"`

	// Name is the stable item identity (e.g. "steel_ingot").
	Name string `json:"name"`

	// Count is the number of units in the slot.
	Count int `json:"count"`

	// Label is the display label, used by the marker side channel.
	Label string `json:"label"`
}

// TankLevel describes one occupied fluid tank on a node.
type TankLevel struct {
	// Tank is the tank index on the node.
	Tank int `json:"tank"`

	// Name is the fluid identity.
	Name string `json:"name"`

	// Amount is the stored volume in millibuckets.
	Amount int `json:"amount"`
}

// HasCapability reports whether want is present in caps.
func HasCapability(caps []Capability, want Capability) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}
