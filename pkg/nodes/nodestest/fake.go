// Package nodestest provides an in-memory node gateway for tests. The fake
// keeps real inventories: pushing a slot or tank moves its contents to the
// destination node, so tests can assert on where material ended up.
package nodestest

import (
	"context"
	"fmt"
	"sync"

	"github.com/matflow/matflow/pkg/nodes"
)

// Directory is an in-memory nodes.Directory.
type Directory struct {
	mu    sync.Mutex
	nodes map[string]*Node
	order []string
}

// NewDirectory creates an empty fake directory.
func NewDirectory() *Directory {
	return &Directory{nodes: make(map[string]*Node)}
}

// Add creates a node with the given address and identity tag and registers
// it in the directory. By default the node advertises every capability.
func (d *Directory) Add(address, tag string) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := &Node{
		dir:     d,
		address: address,
		tag:     tag,
		caps: []nodes.Capability{
			nodes.CapabilityListItems,
			nodes.CapabilityListTanks,
			nodes.CapabilityPushItems,
			nodes.CapabilityPushFluid,
			nodes.CapabilitySetMode,
			nodes.CapabilityCoordinate,
			nodes.CapabilityIdentityTag,
		},
	}
	d.nodes[address] = n
	d.order = append(d.order, address)
	return n
}

// Addresses lists registered addresses in registration order.
func (d *Directory) Addresses(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out, nil
}

// Node returns the client for address. Unknown addresses yield a node whose
// every call fails, mirroring a gateway 404.
func (d *Directory) Node(address string) nodes.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[address]; ok {
		return n
	}
	return &Node{dir: d, address: address, missing: true}
}

// lookup resolves a destination address for push operations.
func (d *Directory) lookup(address string) (*Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[address]
	return n, ok
}

// Node is an in-memory nodes.Client with scriptable transient failures.
type Node struct {
	dir     *Directory
	address string
	missing bool

	mu       sync.Mutex
	tag      string
	coord    nodes.Coordinate
	caps     []nodes.Capability
	items    []nodes.ItemStack
	tanks    []nodes.TankLevel
	failNext int
	calls    int
	modeSets []int
}

// SetCoordinate sets the node's reported position.
func (n *Node) SetCoordinate(c nodes.Coordinate) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.coord = c
	return n
}

// SetCapabilities replaces the node's advertised capabilities.
func (n *Node) SetCapabilities(caps ...nodes.Capability) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.caps = caps
	return n
}

// PutStack places a stack in the node's inventory.
func (n *Node) PutStack(s nodes.ItemStack) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, s)
	return n
}

// PutTank places fluid in one of the node's tanks.
func (n *Node) PutTank(t nodes.TankLevel) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tanks = append(n.tanks, t)
	return n
}

// FailNext makes the next count calls on this node fail before succeeding.
func (n *Node) FailNext(count int) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failNext = count
	return n
}

// Calls returns how many calls the node has received, failed ones included.
func (n *Node) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// ModeSets returns every mode parameter value applied to the node, in order.
func (n *Node) ModeSets() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, len(n.modeSets))
	copy(out, n.modeSets)
	return out
}

// Stacks returns a snapshot of the node's item inventory.
func (n *Node) Stacks() []nodes.ItemStack {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]nodes.ItemStack, len(n.items))
	copy(out, n.items)
	return out
}

// Tanks returns a snapshot of the node's tank contents.
func (n *Node) Tanks() []nodes.TankLevel {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]nodes.TankLevel, len(n.tanks))
	copy(out, n.tanks)
	return out
}

// gate counts the call and injects a scripted failure when one is pending.
// Callers must hold n.mu.
func (n *Node) gate(op string) error {
	n.calls++
	if n.missing {
		return fmt.Errorf("node %s: %s: not found", n.address, op)
	}
	if n.failNext > 0 {
		n.failNext--
		return fmt.Errorf("node %s: %s: transient rejection", n.address, op)
	}
	return nil
}

func (n *Node) Address() string { return n.address }

func (n *Node) IdentityTag(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("identity"); err != nil {
		return "", err
	}
	return n.tag, nil
}

func (n *Node) Coordinate(ctx context.Context) (nodes.Coordinate, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("coordinate"); err != nil {
		return nodes.Coordinate{}, err
	}
	return n.coord, nil
}

func (n *Node) Capabilities(ctx context.Context) ([]nodes.Capability, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("capabilities"); err != nil {
		return nil, err
	}
	out := make([]nodes.Capability, len(n.caps))
	copy(out, n.caps)
	return out, nil
}

func (n *Node) ListItems(ctx context.Context) ([]nodes.ItemStack, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("list items"); err != nil {
		return nil, err
	}
	out := make([]nodes.ItemStack, len(n.items))
	copy(out, n.items)
	return out, nil
}

func (n *Node) ListTanks(ctx context.Context) ([]nodes.TankLevel, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("list tanks"); err != nil {
		return nil, err
	}
	out := make([]nodes.TankLevel, len(n.tanks))
	copy(out, n.tanks)
	return out, nil
}

func (n *Node) PushItems(ctx context.Context, dest string, slot int) error {
	n.mu.Lock()
	if err := n.gate("push items"); err != nil {
		n.mu.Unlock()
		return err
	}

	idx := -1
	for i, s := range n.items {
		if s.Slot == slot {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return fmt.Errorf("node %s: push items: slot %d is empty", n.address, slot)
	}
	stack := n.items[idx]
	n.items = append(n.items[:idx], n.items[idx+1:]...)
	n.mu.Unlock()

	target, ok := n.dir.lookup(dest)
	if !ok {
		return fmt.Errorf("node %s: push items: destination %s not found", n.address, dest)
	}
	target.mu.Lock()
	target.items = append(target.items, stack)
	target.mu.Unlock()
	return nil
}

func (n *Node) PushFluid(ctx context.Context, dest string, tank int) error {
	n.mu.Lock()
	if err := n.gate("push fluid"); err != nil {
		n.mu.Unlock()
		return err
	}

	idx := -1
	for i, t := range n.tanks {
		if t.Tank == tank {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mu.Unlock()
		return fmt.Errorf("node %s: push fluid: tank %d is empty", n.address, tank)
	}
	level := n.tanks[idx]
	n.tanks = append(n.tanks[:idx], n.tanks[idx+1:]...)
	n.mu.Unlock()

	target, ok := n.dir.lookup(dest)
	if !ok {
		return fmt.Errorf("node %s: push fluid: destination %s not found", n.address, dest)
	}
	target.mu.Lock()
	target.tanks = append(target.tanks, level)
	target.mu.Unlock()
	return nil
}

func (n *Node) SetModeParameter(ctx context.Context, value int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.gate("set mode"); err != nil {
		return err
	}
	n.modeSets = append(n.modeSets, value)
	return nil
}
