package controller

import (
	"context"
	"regexp"
	"strconv"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/telemetry"
)

// Transfer kinds as recorded in metrics and the journal.
const (
	TransferKindItem         = "item"
	TransferKindFluid        = "fluid"
	TransferKindConfigReturn = "config-return"
)

// markerLabelPattern extracts the mode parameter from a marker unit's
// label. Labels that don't match fall through to the ordinary item path.
var markerLabelPattern = regexp.MustCompile(`^C:(-?\d+)$`)

// Mode parameter bounds accepted from marker labels, inclusive.
const (
	MinModeParameter = -1
	MaxModeParameter = 32
)

// TransferRecorder persists completed transfers for audit. Implementations
// must tolerate a nil receiver being skipped; the orchestrator checks for
// nil before every call.
type TransferRecorder interface {
	RecordTransfer(ctx context.Context, cycleID, kind, source, dest, name string, amount int) error
}

// OrchestratorConfig carries the transfer policy.
type OrchestratorConfig struct {
	// MarkerItem is the item identity that triggers reconfiguration
	// handling. Empty disables marker detection.
	MarkerItem string

	// Reconfigure enables the marker path: marker units route to the
	// config-return node and their label value is applied as the
	// destination's mode parameter.
	Reconfigure bool
}

// Orchestrator moves intake contents to a selected output. Slot and tank
// pushes within one call fan out concurrently; the call returns when the
// whole batch has settled.
type Orchestrator struct {
	cfg          OrchestratorConfig
	intakeItems  nodes.Client
	intakeFluids nodes.Client
	configReturn nodes.Client
	retrier      *Retrier
	log          *telemetry.Logger
	metrics      *telemetry.Metrics
	recorder     TransferRecorder
}

// NewOrchestrator creates a transfer orchestrator. Any of the three nodes
// may be nil; the corresponding push becomes a no-op.
func NewOrchestrator(cfg OrchestratorConfig, intakeItems, intakeFluids, configReturn nodes.Client,
	retrier *Retrier, log *telemetry.Logger, metrics *telemetry.Metrics, recorder TransferRecorder) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		intakeItems:  intakeItems,
		intakeFluids: intakeFluids,
		configReturn: configReturn,
		retrier:      retrier,
		log:          log.NewComponentLogger("transfer"),
		metrics:      metrics,
		recorder:     recorder,
	}
}

// PushAll moves items and fluid to out in one concurrent batch. Used by
// the paired cadence where a single output takes both resources.
func (o *Orchestrator) PushAll(ctx context.Context, cycleID string, out *Output) error {
	group := NewTaskGroup()
	group.Enqueue(func(ctx context.Context) error {
		return o.PushItems(ctx, cycleID, out)
	})
	group.Enqueue(func(ctx context.Context) error {
		return o.PushFluids(ctx, cycleID, out)
	})
	return group.RunAll(ctx)
}

// PushItems drains every occupied intake slot into out's item node, one
// concurrent push per slot. Marker units divert to the config-return node
// and reprogram the destination instead. No-op when the output has no item
// node or no intake is bound.
func (o *Orchestrator) PushItems(ctx context.Context, cycleID string, out *Output) error {
	if o.intakeItems == nil || out.Items == nil {
		return nil
	}

	stacks, err := Call(ctx, o.retrier, "intake.list-items", func() ([]nodes.ItemStack, error) {
		return o.intakeItems.ListItems(ctx)
	})
	if err != nil {
		return err
	}

	group := NewTaskGroup()
	for _, stack := range stacks {
		group.Enqueue(func(ctx context.Context) error {
			return o.pushStack(ctx, cycleID, stack, out)
		})
	}
	return group.RunAll(ctx)
}

// pushStack routes a single slot: the marker path when the stack is a
// labeled marker unit and reconfiguration is on, the ordinary path
// otherwise.
func (o *Orchestrator) pushStack(ctx context.Context, cycleID string, stack nodes.ItemStack, out *Output) error {
	if o.cfg.Reconfigure && o.cfg.MarkerItem != "" && stack.Name == o.cfg.MarkerItem {
		value, ok, err := o.parseMarkerLabel(stack)
		if err != nil {
			return err
		}
		if ok {
			return o.applyMarker(ctx, cycleID, stack, out, value)
		}
	}

	err := o.retrier.Do(ctx, "intake.push-items", func() error {
		return o.intakeItems.PushItems(ctx, out.Items.Address(), stack.Slot)
	})
	if err != nil {
		o.metrics.RecordTransfer(TransferKindItem, "failed")
		return err
	}
	o.metrics.RecordTransfer(TransferKindItem, "ok")
	o.record(ctx, cycleID, TransferKindItem, o.intakeItems.Address(), out.Items.Address(), stack.Name, stack.Count)
	return nil
}

// parseMarkerLabel extracts the mode parameter from a marker unit's label.
// A well-formed value outside the accepted range is fatal; a malformed
// label warns and sends the unit down the ordinary path.
func (o *Orchestrator) parseMarkerLabel(stack nodes.ItemStack) (int, bool, error) {
	m := markerLabelPattern.FindStringSubmatch(stack.Label)
	if m == nil {
		o.log.Warnf("marker unit in slot %d has unreadable label %q, routing as ordinary item", stack.Slot, stack.Label)
		return 0, false, nil
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		o.log.Warnf("marker unit in slot %d has unreadable label %q, routing as ordinary item", stack.Slot, stack.Label)
		return 0, false, nil
	}
	if value < MinModeParameter || value > MaxModeParameter {
		return 0, false, NewFatalf("marker label %q carries mode parameter %d outside [%d,%d]",
			stack.Label, value, MinModeParameter, MaxModeParameter)
	}
	return value, true, nil
}

// applyMarker returns the marker unit to the config-return node and sets
// the destination's mode parameter, concurrently.
func (o *Orchestrator) applyMarker(ctx context.Context, cycleID string, stack nodes.ItemStack, out *Output, value int) error {
	if o.configReturn == nil {
		return NewFatalf("marker unit in slot %d but no config-return node is bound", stack.Slot)
	}

	log := o.log.WithCycleID(cycleID).WithOutput(out.ID())
	log.Infof("marker unit in slot %d: returning to %s, setting mode parameter %d",
		stack.Slot, o.configReturn.Address(), value)

	group := NewTaskGroup()
	group.Enqueue(func(ctx context.Context) error {
		err := o.retrier.Do(ctx, "intake.push-items", func() error {
			return o.intakeItems.PushItems(ctx, o.configReturn.Address(), stack.Slot)
		})
		if err != nil {
			o.metrics.RecordTransfer(TransferKindConfigReturn, "failed")
			return err
		}
		o.metrics.RecordTransfer(TransferKindConfigReturn, "ok")
		o.record(ctx, cycleID, TransferKindConfigReturn, o.intakeItems.Address(), o.configReturn.Address(), stack.Name, stack.Count)
		return nil
	})
	group.Enqueue(func(ctx context.Context) error {
		err := o.retrier.Do(ctx, "output.set-mode", func() error {
			return out.Items.SetModeParameter(ctx, value)
		})
		if err != nil {
			return err
		}
		o.metrics.RecordReconfiguration()
		return nil
	})
	return group.RunAll(ctx)
}

// PushFluids drains every occupied intake tank into out's fluid node, one
// concurrent push per tank. No-op when the output has no fluid node or no
// intake is bound.
func (o *Orchestrator) PushFluids(ctx context.Context, cycleID string, out *Output) error {
	if o.intakeFluids == nil || out.Fluids == nil {
		return nil
	}

	tanks, err := Call(ctx, o.retrier, "intake.list-tanks", func() ([]nodes.TankLevel, error) {
		return o.intakeFluids.ListTanks(ctx)
	})
	if err != nil {
		return err
	}

	group := NewTaskGroup()
	for _, tank := range tanks {
		group.Enqueue(func(ctx context.Context) error {
			err := o.retrier.Do(ctx, "intake.push-fluid", func() error {
				return o.intakeFluids.PushFluid(ctx, out.Fluids.Address(), tank.Tank)
			})
			if err != nil {
				o.metrics.RecordTransfer(TransferKindFluid, "failed")
				return err
			}
			o.metrics.RecordTransfer(TransferKindFluid, "ok")
			o.record(ctx, cycleID, TransferKindFluid, o.intakeFluids.Address(), out.Fluids.Address(), tank.Name, tank.Amount)
			return nil
		})
	}
	return group.RunAll(ctx)
}

// ItemsPending reports whether the intake holds any items. False when no
// intake-items node is bound.
func (o *Orchestrator) ItemsPending(ctx context.Context) (bool, error) {
	if o.intakeItems == nil {
		return false, nil
	}
	stacks, err := Call(ctx, o.retrier, "intake.list-items", func() ([]nodes.ItemStack, error) {
		return o.intakeItems.ListItems(ctx)
	})
	if err != nil {
		return false, err
	}
	return len(stacks) > 0, nil
}

// FluidsPending reports whether the intake holds any fluid. False when no
// intake-fluids node is bound.
func (o *Orchestrator) FluidsPending(ctx context.Context) (bool, error) {
	if o.intakeFluids == nil {
		return false, nil
	}
	tanks, err := Call(ctx, o.retrier, "intake.list-tanks", func() ([]nodes.TankLevel, error) {
		return o.intakeFluids.ListTanks(ctx)
	})
	if err != nil {
		return false, err
	}
	return len(tanks) > 0, nil
}

// record writes one journal row; journal failures are logged, never fatal.
func (o *Orchestrator) record(ctx context.Context, cycleID, kind, source, dest, name string, amount int) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordTransfer(ctx, cycleID, kind, source, dest, name, amount); err != nil {
		o.log.WithError(err).Warn("failed to journal transfer")
	}
}
