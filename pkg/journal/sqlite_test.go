package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalCycleLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.BeginCycle(ctx, "cycle-1"); err != nil {
		t.Fatalf("begin cycle failed: %v", err)
	}
	if err := j.CompleteCycle(ctx, "cycle-1", "routed"); err != nil {
		t.Fatalf("complete cycle failed: %v", err)
	}

	cycles, err := j.ListCycles(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list cycles failed: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	if cycles[0].ID != "cycle-1" || cycles[0].Outcome != "routed" {
		t.Errorf("unexpected cycle %+v", cycles[0])
	}
	if cycles[0].CompletedAt == nil {
		t.Error("completed cycle should carry a completion time")
	}
}

func TestJournalCompleteUnknownCycle(t *testing.T) {
	j := openTestJournal(t)
	if err := j.CompleteCycle(context.Background(), "nope", "idle"); err == nil {
		t.Fatal("expected error for unknown cycle")
	}
}

func TestJournalRecordsTransfers(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.BeginCycle(ctx, "cycle-1"); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordTransfer(ctx, "cycle-1", "item", "intake", "station-1", "iron-ingot", 32); err != nil {
		t.Fatalf("record transfer failed: %v", err)
	}
	if err := j.RecordTransfer(ctx, "cycle-1", "config-return", "intake", "return-chest", "config-marker", 1); err != nil {
		t.Fatalf("record transfer failed: %v", err)
	}

	transfers, err := j.ListTransfersByCycle(ctx, "cycle-1")
	if err != nil {
		t.Fatalf("list transfers failed: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(transfers))
	}
	if transfers[0].Kind != "item" || transfers[0].Dest != "station-1" || transfers[0].Amount != 32 {
		t.Errorf("unexpected first transfer %+v", transfers[0])
	}
	if transfers[1].Kind != "config-return" {
		t.Errorf("unexpected second transfer %+v", transfers[1])
	}
}

func TestJournalNilReceiverDropsWrites(t *testing.T) {
	var j *Journal
	ctx := context.Background()

	if err := j.BeginCycle(ctx, "cycle-1"); err != nil {
		t.Errorf("nil journal BeginCycle should be a no-op, got %v", err)
	}
	if err := j.CompleteCycle(ctx, "cycle-1", "idle"); err != nil {
		t.Errorf("nil journal CompleteCycle should be a no-op, got %v", err)
	}
	if err := j.RecordTransfer(ctx, "cycle-1", "item", "a", "b", "x", 1); err != nil {
		t.Errorf("nil journal RecordTransfer should be a no-op, got %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("nil journal Close should be a no-op, got %v", err)
	}
}

func TestJournalHealthCheck(t *testing.T) {
	j := openTestJournal(t)
	if err := j.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed: %v", err)
	}

	var nilJournal *Journal
	if err := nilJournal.HealthCheck(context.Background()); err == nil {
		t.Error("nil journal health check should fail")
	}
}
