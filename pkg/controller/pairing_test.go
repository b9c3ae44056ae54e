package controller

import (
	"context"
	"testing"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/nodes/nodestest"
	"github.com/matflow/matflow/pkg/telemetry"
)

func pairingNodes(t *testing.T) (dir *nodestest.Directory, items, fluids []nodes.Client) {
	t.Helper()

	dir = nodestest.NewDirectory()
	dir.Add("item-a", "station-1").SetCoordinate(nodes.Coordinate{X: 0, Y: 0, Z: 0})
	dir.Add("item-b", "station-2").SetCoordinate(nodes.Coordinate{X: 5, Y: 0, Z: 0})
	dir.Add("fluid-a", "vat-1").SetCoordinate(nodes.Coordinate{X: 0, Y: 3, Z: 0})
	dir.Add("fluid-b", "vat-2").SetCoordinate(nodes.Coordinate{X: 5, Y: 3, Z: 0})

	items = []nodes.Client{dir.Node("item-a"), dir.Node("item-b")}
	fluids = []nodes.Client{dir.Node("fluid-a"), dir.Node("fluid-b")}
	return dir, items, fluids
}

func TestPairerMatchesByCoordinateOffset(t *testing.T) {
	_, items, fluids := pairingNodes(t)

	p := NewPairer(PairingConfig{
		Enabled: true,
		Offset:  nodes.Coordinate{X: 0, Y: 3, Z: 0},
	}, testRetrier(3), telemetry.NewTestLogger())

	outputs, err := p.Pair(context.Background(), items, fluids)
	if err != nil {
		t.Fatalf("pairing failed: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}

	want := map[string]string{
		"item-a": "fluid-a",
		"item-b": "fluid-b",
	}
	for _, out := range outputs {
		if out.Items == nil || out.Fluids == nil {
			t.Fatalf("paired output missing a member: %+v", out)
		}
		if want[out.Items.Address()] != out.Fluids.Address() {
			t.Errorf("item %s paired with %s, want %s",
				out.Items.Address(), out.Fluids.Address(), want[out.Items.Address()])
		}
	}
}

func TestPairerUnmatchedCoordinateIsFatal(t *testing.T) {
	dir, items, fluids := pairingNodes(t)
	// Move one fluid node where no item node expects it.
	dir.Node("fluid-b").(*nodestest.Node).SetCoordinate(nodes.Coordinate{X: 9, Y: 9, Z: 9})

	p := NewPairer(PairingConfig{
		Enabled: true,
		Offset:  nodes.Coordinate{X: 0, Y: 3, Z: 0},
	}, testRetrier(3), telemetry.NewTestLogger())

	_, err := p.Pair(context.Background(), items, fluids)
	if err == nil {
		t.Fatal("expected fatal error for unmatched coordinate")
	}
	if !IsFatal(err) {
		t.Errorf("unmatched coordinate should be fatal, got %v", err)
	}
}

func TestPairerCountMismatchIsFatal(t *testing.T) {
	_, items, fluids := pairingNodes(t)

	p := NewPairer(PairingConfig{
		Enabled: true,
		Offset:  nodes.Coordinate{X: 0, Y: 3, Z: 0},
	}, testRetrier(3), telemetry.NewTestLogger())

	_, err := p.Pair(context.Background(), items, fluids[:1])
	if err == nil {
		t.Fatal("expected fatal error for count mismatch")
	}
	if !IsFatal(err) {
		t.Errorf("count mismatch should be fatal, got %v", err)
	}
}

func TestPairerSingleModeOrdersItemsFirst(t *testing.T) {
	_, items, fluids := pairingNodes(t)

	p := NewPairer(PairingConfig{Enabled: false}, testRetrier(3), telemetry.NewTestLogger())
	outputs, err := p.Pair(context.Background(), items, fluids)
	if err != nil {
		t.Fatalf("pairing failed: %v", err)
	}
	if len(outputs) != 4 {
		t.Fatalf("expected 4 single-resource outputs, got %d", len(outputs))
	}

	for i, out := range outputs[:2] {
		if out.Items == nil || out.Fluids != nil {
			t.Errorf("output %d should be item-only", i)
		}
	}
	for i, out := range outputs[2:] {
		if out.Fluids == nil || out.Items != nil {
			t.Errorf("output %d should be fluid-only", i+2)
		}
	}
}

func TestPairerDuplicateNodeIdentityIsFatal(t *testing.T) {
	dir := nodestest.NewDirectory()
	dir.Add("item-a", "station-1")

	dup := []nodes.Client{dir.Node("item-a"), dir.Node("item-a")}
	p := NewPairer(PairingConfig{Enabled: false}, testRetrier(3), telemetry.NewTestLogger())

	_, err := p.Pair(context.Background(), dup, nil)
	if err == nil {
		t.Fatal("expected fatal error for duplicate identity")
	}
	if !IsFatal(err) {
		t.Errorf("duplicate identity should be fatal, got %v", err)
	}
}

func TestPairerEmptyPoolIsFatal(t *testing.T) {
	p := NewPairer(PairingConfig{Enabled: false}, testRetrier(3), telemetry.NewTestLogger())
	_, err := p.Pair(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected fatal error for empty pool")
	}
	if !IsFatal(err) {
		t.Errorf("empty pool should be fatal, got %v", err)
	}
}
