package controller

import (
	"context"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/telemetry"
)

// PairingConfig controls how output nodes are grouped into logical outputs.
type PairingConfig struct {
	// Enabled pairs every item node with the fluid node at Offset from it.
	// Disabled leaves every node a single-resource output.
	Enabled bool

	// Offset is added to an item node's coordinate to find its fluid
	// partner.
	Offset nodes.Coordinate
}

// Pairer groups classified output nodes into logical Output units.
type Pairer struct {
	cfg     PairingConfig
	retrier *Retrier
	log     *telemetry.Logger
}

// NewPairer creates a pairer.
func NewPairer(cfg PairingConfig, retrier *Retrier, log *telemetry.Logger) *Pairer {
	return &Pairer{
		cfg:     cfg,
		retrier: retrier,
		log:     log.NewComponentLogger("pairer"),
	}
}

// Pair builds the ordered output list. In pairing mode every item node is
// matched with the fluid node at the configured coordinate offset (fatal
// when counts differ or a partner is missing). Otherwise item-only outputs
// come first, fluid-only outputs after, in the order the nodes were
// classified. Duplicate node identities across outputs and an empty result
// are fatal.
func (p *Pairer) Pair(ctx context.Context, itemNodes, fluidNodes []nodes.Client) ([]*Output, error) {
	var outputs []*Output
	var err error
	if p.cfg.Enabled {
		outputs, err = p.pairByOffset(ctx, itemNodes, fluidNodes)
	} else {
		outputs, err = p.single(ctx, itemNodes, fluidNodes)
	}
	if err != nil {
		return nil, err
	}

	if err := validateOutputs(outputs); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, NewFatalf("no outputs discovered, nothing to route to")
	}

	p.log.Infof("built %d outputs (pairing=%v)", len(outputs), p.cfg.Enabled)
	return outputs, nil
}

// pairByOffset matches each item node with the fluid node at its expected
// coordinate. All coordinate reads run in one concurrent batch.
func (p *Pairer) pairByOffset(ctx context.Context, itemNodes, fluidNodes []nodes.Client) ([]*Output, error) {
	if len(itemNodes) != len(fluidNodes) {
		return nil, NewFatalf("pairing requires equal counts, got %d item outputs and %d fluid outputs",
			len(itemNodes), len(fluidNodes))
	}

	// Fluid coordinates first, so each pairing task scans a complete map.
	fluidCoords := make([]nodes.Coordinate, len(fluidNodes))
	group := NewTaskGroup()
	for i, fluid := range fluidNodes {
		group.Enqueue(func(ctx context.Context) error {
			coord, err := Call(ctx, p.retrier, "node.coordinate", func() (nodes.Coordinate, error) {
				return fluid.Coordinate(ctx)
			})
			if err != nil {
				return err
			}
			fluidCoords[i] = coord
			return nil
		})
	}
	if err := group.RunAll(ctx); err != nil {
		return nil, err
	}

	outputs := make([]*Output, len(itemNodes))
	for i, item := range itemNodes {
		group.Enqueue(func(ctx context.Context) error {
			coord, err := Call(ctx, p.retrier, "node.coordinate", func() (nodes.Coordinate, error) {
				return item.Coordinate(ctx)
			})
			if err != nil {
				return err
			}
			expected := coord.Add(p.cfg.Offset)

			for j, fc := range fluidCoords {
				if fc == expected {
					outputs[i] = &Output{Items: item, Fluids: fluidNodes[j]}
					return nil
				}
			}
			return NewFatalf("no fluid output at expected coordinate %s for item output %s at %s",
				expected, item.Address(), coord)
		})
	}
	if err := group.RunAll(ctx); err != nil {
		return nil, err
	}

	return outputs, nil
}

// single builds one single-resource output per node, items first.
func (p *Pairer) single(ctx context.Context, itemNodes, fluidNodes []nodes.Client) ([]*Output, error) {
	outputs := make([]*Output, len(itemNodes)+len(fluidNodes))

	group := NewTaskGroup()
	for i, item := range itemNodes {
		group.Enqueue(func(ctx context.Context) error {
			outputs[i] = &Output{Items: item}
			return nil
		})
	}
	if err := group.RunAll(ctx); err != nil {
		return nil, err
	}
	for i, fluid := range fluidNodes {
		group.Enqueue(func(ctx context.Context) error {
			outputs[len(itemNodes)+i] = &Output{Fluids: fluid}
			return nil
		})
	}
	if err := group.RunAll(ctx); err != nil {
		return nil, err
	}

	return outputs, nil
}

// validateOutputs rejects outputs sharing an item or fluid node identity.
func validateOutputs(outputs []*Output) error {
	seenItems := make(map[string]bool)
	seenFluids := make(map[string]bool)
	for _, out := range outputs {
		if out.Items != nil {
			addr := out.Items.Address()
			if seenItems[addr] {
				return NewFatalf("item node %s appears in more than one output", addr)
			}
			seenItems[addr] = true
		}
		if out.Fluids != nil {
			addr := out.Fluids.Address()
			if seenFluids[addr] {
				return NewFatalf("fluid node %s appears in more than one output", addr)
			}
			seenFluids[addr] = true
		}
	}
	return nil
}
