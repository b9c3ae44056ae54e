package controller

import (
	"context"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/telemetry"
)

// Output is a logical sink: an item node, a fluid node, or both when
// pairing is active. Immutable after construction; availability is always
// computed on demand, never stored.
type Output struct {
	Items  nodes.Client
	Fluids nodes.Client
}

// ID is the output's identity: the concatenation of its member addresses.
func (o *Output) ID() string {
	id := ""
	if o.Items != nil {
		id += o.Items.Address()
	}
	if o.Fluids != nil {
		if id != "" {
			id += "+"
		}
		id += o.Fluids.Address()
	}
	return id
}

// PoolConfig controls the allocation policy of the output pool.
type PoolConfig struct {
	// RoundRobin scans forward from the last selected output; disabled
	// means a plain linear scan biased toward low indices.
	RoundRobin bool

	// ResidualItem is the item identity an available output is still
	// allowed to contain (leftover marker units from reconfiguration).
	ResidualItem string
}

// Pool is the ordered collection of outputs plus the allocation policy.
// The round-robin cursor is the only mutable shared state in the
// controller; it is written exclusively by the single-threaded selection
// step and therefore needs no lock.
type Pool struct {
	outputs []*Output
	cfg     PoolConfig
	retrier *Retrier
	log     *telemetry.Logger
	metrics *telemetry.Metrics

	// cursor is the index of the last round-robin selection, -1 before
	// the first one.
	cursor int
}

// NewPool creates a pool over the given outputs, preserving their order.
func NewPool(outputs []*Output, cfg PoolConfig, retrier *Retrier, log *telemetry.Logger, metrics *telemetry.Metrics) *Pool {
	metrics.SetPoolSize(len(outputs))
	return &Pool{
		outputs: outputs,
		cfg:     cfg,
		retrier: retrier,
		log:     log.NewComponentLogger("pool"),
		metrics: metrics,
		cursor:  -1,
	}
}

// Size returns the number of outputs in the pool.
func (p *Pool) Size() int {
	return len(p.outputs)
}

// Outputs returns the pool's outputs in iteration order.
func (p *Pool) Outputs() []*Output {
	return p.outputs
}

// Available reports whether out can accept a transfer right now. An output
// is available iff its fluid node, when present, reports no occupied
// tanks, and its item node, when present, contains nothing but residual
// marker units. Both checks re-query the node.
func (p *Pool) Available(ctx context.Context, out *Output) (bool, error) {
	if out.Fluids != nil {
		tanks, err := Call(ctx, p.retrier, "output.list-tanks", func() ([]nodes.TankLevel, error) {
			return out.Fluids.ListTanks(ctx)
		})
		if err != nil {
			return false, err
		}
		for _, t := range tanks {
			if t.Amount > 0 {
				return false, nil
			}
		}
	}

	if out.Items != nil {
		stacks, err := Call(ctx, p.retrier, "output.list-items", func() ([]nodes.ItemStack, error) {
			return out.Items.ListItems(ctx)
		})
		if err != nil {
			return false, err
		}
		for _, s := range stacks {
			if s.Name != p.cfg.ResidualItem {
				return false, nil
			}
		}
	}

	return true, nil
}

// Select returns the next available output under the configured policy, or
// nil when every output is busy.
func (p *Pool) Select(ctx context.Context) (*Output, error) {
	if p.cfg.RoundRobin {
		return p.selectRoundRobin(ctx)
	}
	return p.selectLinear(ctx)
}

// selectRoundRobin scans forward from the cursor, wrapping once through
// the whole pool, and advances the cursor to the hit. Across repeated
// calls every available output is visited in cyclic order; nothing is
// starved while at least one output stays available.
func (p *Pool) selectRoundRobin(ctx context.Context) (*Output, error) {
	n := len(p.outputs)
	for step := 1; step <= n; step++ {
		idx := (p.cursor + step) % n
		ok, err := p.Available(ctx, p.outputs[idx])
		if err != nil {
			return nil, err
		}
		if ok {
			p.cursor = idx
			p.metrics.SetOutputsAvailable(1)
			p.log.WithOutput(p.outputs[idx].ID()).Debugf("selected output %d of %d", idx+1, n)
			return p.outputs[idx], nil
		}
	}
	p.metrics.SetOutputsAvailable(0)
	return nil, nil
}

// selectLinear scans from index 0 with no memory between calls.
func (p *Pool) selectLinear(ctx context.Context) (*Output, error) {
	for _, out := range p.outputs {
		ok, err := p.Available(ctx, out)
		if err != nil {
			return nil, err
		}
		if ok {
			p.metrics.SetOutputsAvailable(1)
			p.log.WithOutput(out.ID()).Debug("selected output")
			return out, nil
		}
	}
	p.metrics.SetOutputsAvailable(0)
	return nil, nil
}
