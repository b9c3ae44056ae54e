package controller

import (
	"context"
	"testing"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/nodes/nodestest"
	"github.com/matflow/matflow/pkg/telemetry"
)

func TestLoopRoutesItemsAndFluidIndependently(t *testing.T) {
	dir := nodestest.NewDirectory()
	intakeItems := dir.Add("intake-items", "intake")
	intakeFluids := dir.Add("intake-fluids", "intake-tank")
	configReturn := dir.Add("return-chest", "return-chest")
	station := dir.Add("station-1", "station-1")
	vat := dir.Add("vat-1", "vat-1")

	intakeItems.PutStack(nodes.ItemStack{Slot: 1, Name: "iron-ingot", Count: 32})
	intakeItems.PutStack(nodes.ItemStack{Slot: 2, Name: "copper-ingot", Count: 16})
	intakeItems.PutStack(nodes.ItemStack{Slot: 3, Name: "config-marker", Count: 1, Label: "C:4"})
	intakeFluids.PutTank(nodes.TankLevel{Tank: 1, Name: "water", Amount: 1000})

	retrier := testRetrier(5)
	log := telemetry.NewTestLogger()

	pool := NewPool([]*Output{
		{Items: dir.Node("station-1")},
		{Fluids: dir.Node("vat-1")},
	}, PoolConfig{RoundRobin: false, ResidualItem: "config-marker"}, retrier, log, nil)

	orch := NewOrchestrator(OrchestratorConfig{
		MarkerItem:  "config-marker",
		Reconfigure: true,
	}, dir.Node("intake-items"), dir.Node("intake-fluids"), dir.Node("return-chest"),
		retrier, log, nil, nil)

	loop := NewLoop(LoopConfig{Pairing: false}, pool, orch, log, nil, nil)

	outcome, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if outcome != CycleOutcomeRouted {
		t.Errorf("expected routed outcome, got %s", outcome)
	}

	if got := len(station.Stacks()); got != 2 {
		t.Errorf("expected 2 ordinary stacks at the station, got %d", got)
	}
	if got := len(configReturn.Stacks()); got != 1 {
		t.Errorf("expected the marker unit at the config-return node, got %d stacks", got)
	}
	modes := station.ModeSets()
	if len(modes) != 1 || modes[0] != 4 {
		t.Errorf("expected mode parameter 4 applied to the station, got %v", modes)
	}
	if got := len(vat.Tanks()); got != 1 {
		t.Errorf("expected the water routed to the vat, got %d tanks", got)
	}
	if got := len(intakeItems.Stacks()); got != 0 {
		t.Errorf("intake items should be drained, %d remain", got)
	}
	if got := len(intakeFluids.Tanks()); got != 0 {
		t.Errorf("intake fluid should be drained, %d remain", got)
	}

	// A second pass over the drained intake idles.
	outcome, err = loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("idle cycle failed: %v", err)
	}
	if outcome != CycleOutcomeIdle {
		t.Errorf("expected idle outcome on empty intake, got %s", outcome)
	}
}

func TestLoopPairedCadencePushesBothToOneOutput(t *testing.T) {
	dir := nodestest.NewDirectory()
	intakeItems := dir.Add("intake-items", "intake")
	intakeFluids := dir.Add("intake-fluids", "intake-tank")
	station := dir.Add("station-1", "station-1")
	vat := dir.Add("vat-1", "vat-1")

	intakeItems.PutStack(nodes.ItemStack{Slot: 1, Name: "iron-ingot", Count: 8})
	intakeFluids.PutTank(nodes.TankLevel{Tank: 1, Name: "water", Amount: 250})

	retrier := testRetrier(5)
	log := telemetry.NewTestLogger()

	pool := NewPool([]*Output{
		{Items: dir.Node("station-1"), Fluids: dir.Node("vat-1")},
	}, PoolConfig{RoundRobin: true}, retrier, log, nil)

	orch := NewOrchestrator(OrchestratorConfig{}, dir.Node("intake-items"), dir.Node("intake-fluids"), nil,
		retrier, log, nil, nil)

	loop := NewLoop(LoopConfig{Pairing: true}, pool, orch, log, nil, nil)

	outcome, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if outcome != CycleOutcomeRouted {
		t.Errorf("expected routed outcome, got %s", outcome)
	}
	if len(station.Stacks()) != 1 || len(vat.Tanks()) != 1 {
		t.Errorf("expected both resources at the paired output, got %d stacks / %d tanks",
			len(station.Stacks()), len(vat.Tanks()))
	}
}

func TestLoopBlocksWhenEveryOutputIsBusy(t *testing.T) {
	dir := nodestest.NewDirectory()
	intakeItems := dir.Add("intake-items", "intake")
	dir.Add("station-1", "station-1").
		PutStack(nodes.ItemStack{Slot: 1, Name: "stale-work", Count: 1})

	intakeItems.PutStack(nodes.ItemStack{Slot: 1, Name: "iron-ingot", Count: 8})

	retrier := testRetrier(5)
	log := telemetry.NewTestLogger()

	pool := NewPool([]*Output{
		{Items: dir.Node("station-1")},
	}, PoolConfig{RoundRobin: true}, retrier, log, nil)

	orch := NewOrchestrator(OrchestratorConfig{}, dir.Node("intake-items"), nil, nil,
		retrier, log, nil, nil)

	loop := NewLoop(LoopConfig{Pairing: false}, pool, orch, log, nil, nil)

	outcome, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("blocked cycle must not error: %v", err)
	}
	if outcome != CycleOutcomeBlocked {
		t.Errorf("expected blocked outcome, got %s", outcome)
	}
	if got := len(intakeItems.Stacks()); got != 1 {
		t.Errorf("intake must keep its items while blocked, got %d stacks", got)
	}
}

func TestLoopRunStopsOnContextCancellation(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("intake-items", "intake")
	dir.Add("station-1", "station-1")

	retrier := testRetrier(5)
	log := telemetry.NewTestLogger()

	pool := NewPool([]*Output{{Items: dir.Node("station-1")}},
		PoolConfig{RoundRobin: true}, retrier, log, nil)
	orch := NewOrchestrator(OrchestratorConfig{}, dir.Node("intake-items"), nil, nil,
		retrier, log, nil, nil)
	loop := NewLoop(LoopConfig{Pairing: false}, pool, orch, log, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := loop.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
