package nodes

import "context"

// Client is the per-node query and transfer surface. Implementations talk
// to a single resource node addressed by a stable address string.
//
// Occupancy results (ListItems, ListTanks) are never cached: every call
// re-queries the node. The environment is allowed to reject calls
// transiently; callers are expected to wrap every method in the
// controller's retry executor.
type Client interface {
	// Address returns the node's stable address.
	Address() string

	// IdentityTag returns the node's identity tag, or the empty string
	// when the node carries no tag.
	IdentityTag(ctx context.Context) (string, error)

	// Coordinate returns the node's position.
	Coordinate(ctx context.Context) (Coordinate, error)

	// Capabilities returns the operations the node supports.
	Capabilities(ctx context.Context) ([]Capability, error)

	// ListItems returns the currently occupied item slots.
	ListItems(ctx context.Context) ([]ItemStack, error)

	// ListTanks returns the currently occupied fluid tanks.
	ListTanks(ctx context.Context) ([]TankLevel, error)

	// PushItems moves the entire contents of slot to the node at dest.
	PushItems(ctx context.Context, dest string, slot int) error

	// PushFluid moves the entire contents of tank to the node at dest.
	PushFluid(ctx context.Context, dest string, tank int) error

	// SetModeParameter applies a processing mode parameter to the node.
	SetModeParameter(ctx context.Context, value int) error
}

// Directory enumerates the resource nodes present in the environment and
// hands out clients for them.
type Directory interface {
	// Addresses lists the addresses of all nodes currently present.
	Addresses(ctx context.Context) ([]string, error)

	// Node returns a client for the node at address. The client is cheap
	// to construct; no connection is made until a method is called.
	Node(address string) Client
}
