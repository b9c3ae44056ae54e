package controller

import (
	"context"
	"testing"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/nodes/nodestest"
	"github.com/matflow/matflow/pkg/telemetry"
)

func testClassifierConfig(t *testing.T) ClassifierConfig {
	t.Helper()

	items, err := NewPatternMatcher(RoleOutputItems, `^station-\d+$`)
	if err != nil {
		t.Fatalf("bad items pattern: %v", err)
	}
	fluids, err := NewPatternMatcher(RoleOutputFluids, `^vat-\d+$`)
	if err != nil {
		t.Fatalf("bad fluids pattern: %v", err)
	}
	return ClassifierConfig{
		IntakeItems:  NewExactMatcher(RoleIntakeItems, "intake"),
		IntakeFluids: NewExactMatcher(RoleIntakeFluids, "intake-tank"),
		ConfigReturn: NewExactMatcher(RoleConfigReturn, "return-chest"),
		OutputItems:  items,
		OutputFluids: fluids,
	}
}

func TestClassifierBindsRoles(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "intake")
	dir.Add("node-2", "intake-tank")
	dir.Add("node-3", "return-chest")
	dir.Add("node-5", "station-2")
	dir.Add("node-4", "station-1")
	dir.Add("node-6", "vat-1")

	c := NewClassifier(dir, testClassifierConfig(t), testRetrier(3), telemetry.NewTestLogger())
	b, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	if b.IntakeItems == nil || b.IntakeItems.Address() != "node-1" {
		t.Errorf("intake-items bound wrong: %+v", b.IntakeItems)
	}
	if b.IntakeFluids == nil || b.IntakeFluids.Address() != "node-2" {
		t.Errorf("intake-fluids bound wrong: %+v", b.IntakeFluids)
	}
	if b.ConfigReturn == nil || b.ConfigReturn.Address() != "node-3" {
		t.Errorf("config-return bound wrong: %+v", b.ConfigReturn)
	}

	if len(b.OutputItems) != 2 {
		t.Fatalf("expected 2 output-items nodes, got %d", len(b.OutputItems))
	}
	// Output lists are sorted by address regardless of discovery order.
	if b.OutputItems[0].Address() != "node-4" || b.OutputItems[1].Address() != "node-5" {
		t.Errorf("output-items not sorted by address: %s, %s",
			b.OutputItems[0].Address(), b.OutputItems[1].Address())
	}
	if len(b.OutputFluids) != 1 || b.OutputFluids[0].Address() != "node-6" {
		t.Errorf("output-fluids bound wrong")
	}
}

func TestClassifierDuplicateSingularRoleIsWarningNotFatal(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "intake")
	dir.Add("node-2", "intake")

	cfg := ClassifierConfig{IntakeItems: NewExactMatcher(RoleIntakeItems, "intake")}
	c := NewClassifier(dir, cfg, testRetrier(3), telemetry.NewTestLogger())
	b, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("duplicate singular binding must not be fatal: %v", err)
	}
	if b.IntakeItems == nil {
		t.Fatal("intake-items should be bound")
	}
	// First bind wins; with a concurrent batch either node may be first,
	// but exactly one must hold the role.
	addr := b.IntakeItems.Address()
	if addr != "node-1" && addr != "node-2" {
		t.Errorf("unexpected binding %s", addr)
	}
}

func TestClassifierMissingCapabilityIsFatal(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "intake").SetCapabilities(nodes.CapabilityPushItems)

	cfg := ClassifierConfig{IntakeItems: NewExactMatcher(RoleIntakeItems, "intake")}
	c := NewClassifier(dir, cfg, testRetrier(3), telemetry.NewTestLogger())
	_, err := c.Discover(context.Background())
	if err == nil {
		t.Fatal("expected fatal capability error")
	}
	if !IsFatal(err) {
		t.Errorf("capability error should be fatal, got %v", err)
	}
}

func TestClassifierLeavesUntaggedAndUnmatchedNodesUnbound(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "")
	dir.Add("node-2", "something-else")

	// Only output roles configured; unclassified nodes are warnings.
	items, err := NewPatternMatcher(RoleOutputItems, `^station-\d+$`)
	if err != nil {
		t.Fatal(err)
	}
	cfg := ClassifierConfig{OutputItems: items}

	c := NewClassifier(dir, cfg, testRetrier(3), telemetry.NewTestLogger())
	b, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("unclassified nodes must not be fatal: %v", err)
	}
	if b.IntakeItems != nil || len(b.OutputItems) != 0 || len(b.OutputFluids) != 0 {
		t.Errorf("expected no bindings, got %+v", b)
	}
}

func TestClassifierMissingConfiguredSingularRoleIsFatal(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "station-1")

	c := NewClassifier(dir, testClassifierConfig(t), testRetrier(3), telemetry.NewTestLogger())
	_, err := c.Discover(context.Background())
	if err == nil {
		t.Fatal("expected fatal error for unbound singular role")
	}
	if !IsFatal(err) {
		t.Errorf("missing singular role should be fatal, got %v", err)
	}
}

func TestClassifierNodeMatchingBothOutputPatternsKeptInBoth(t *testing.T) {
	items, err := NewPatternMatcher(RoleOutputItems, `^station-\d+$`)
	if err != nil {
		t.Fatalf("bad pattern: %v", err)
	}
	fluids, err := NewPatternMatcher(RoleOutputFluids, `^station-1$`)
	if err != nil {
		t.Fatalf("bad pattern: %v", err)
	}
	cfg := ClassifierConfig{OutputItems: items, OutputFluids: fluids}

	dir := nodestest.NewDirectory()
	dir.Add("node-1", "station-1")

	c := NewClassifier(dir, cfg, testRetrier(3), telemetry.NewTestLogger())
	b, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(b.OutputItems) != 1 || len(b.OutputFluids) != 1 {
		t.Errorf("node matching both patterns should appear in both lists, got %d/%d",
			len(b.OutputItems), len(b.OutputFluids))
	}
}

func TestClassifierRetriesTransientTagFailures(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("node-1", "intake").FailNext(2)

	cfg := ClassifierConfig{IntakeItems: NewExactMatcher(RoleIntakeItems, "intake")}
	c := NewClassifier(dir, cfg, testRetrier(5), telemetry.NewTestLogger())
	b, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("transient failures within the attempt budget must recover: %v", err)
	}
	if b.IntakeItems == nil {
		t.Error("intake-items should be bound after retries")
	}
}
