package controller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matflow/matflow/pkg/telemetry"
)

// Cycle outcomes as recorded in metrics and the journal.
const (
	CycleOutcomeIdle    = "idle"
	CycleOutcomeRouted  = "routed"
	CycleOutcomeBlocked = "blocked"
	CycleOutcomeFailed  = "failed"
)

// CycleRecorder persists cycle boundaries for audit.
type CycleRecorder interface {
	BeginCycle(ctx context.Context, cycleID string) error
	CompleteCycle(ctx context.Context, cycleID, outcome string) error
}

// LoopConfig carries the control-loop policy.
type LoopConfig struct {
	// Pairing selects the paired cadence: one output takes both items and
	// fluid each cycle. Disabled routes the two resource classes
	// independently, possibly to different outputs in the same cycle.
	Pairing bool

	// PollInterval throttles cycles. Zero keeps the loop unthrottled,
	// bounded only by the latency of the occupancy queries.
	PollInterval time.Duration
}

// Loop is the control state machine: check intake occupancy, select an
// output, dispatch transfers, repeat until the context is cancelled or a
// fatal error surfaces.
type Loop struct {
	cfg      LoopConfig
	pool     *Pool
	orch     *Orchestrator
	log      *telemetry.Logger
	metrics  *telemetry.Metrics
	recorder CycleRecorder
}

// NewLoop creates a control loop over the given pool and orchestrator.
func NewLoop(cfg LoopConfig, pool *Pool, orch *Orchestrator, log *telemetry.Logger,
	metrics *telemetry.Metrics, recorder CycleRecorder) *Loop {
	return &Loop{
		cfg:      cfg,
		pool:     pool,
		orch:     orch,
		log:      log.NewComponentLogger("loop"),
		metrics:  metrics,
		recorder: recorder,
	}
}

// Run cycles until ctx is cancelled or a cycle fails fatally. Fatal errors
// propagate unrecovered; there is no partial-failure containment.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Infof("control loop starting (pairing=%v, outputs=%d)", l.cfg.Pairing, l.pool.Size())

	for {
		if err := ctx.Err(); err != nil {
			l.log.Info("control loop stopping")
			return err
		}

		if _, err := l.RunOnce(ctx); err != nil {
			return err
		}

		if l.cfg.PollInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(l.cfg.PollInterval):
			}
		}
	}
}

// RunOnce executes exactly one control cycle and returns its outcome.
// Used by Run and directly for diagnostic single-shot invocations.
func (l *Loop) RunOnce(ctx context.Context) (string, error) {
	cycleID := uuid.NewString()
	start := time.Now()

	if l.recorder != nil {
		if err := l.recorder.BeginCycle(ctx, cycleID); err != nil {
			l.log.WithError(err).Warn("failed to journal cycle start")
		}
	}

	var outcome string
	var err error
	if l.cfg.Pairing {
		outcome, err = l.cyclePaired(ctx, cycleID)
	} else {
		outcome, err = l.cycleIndependent(ctx, cycleID)
	}
	if err != nil {
		outcome = CycleOutcomeFailed
	}

	l.metrics.RecordCycle(outcome, time.Since(start))
	if l.recorder != nil {
		if jerr := l.recorder.CompleteCycle(ctx, cycleID, outcome); jerr != nil {
			l.log.WithError(jerr).Warn("failed to journal cycle completion")
		}
	}
	if err != nil {
		return outcome, err
	}

	if outcome != CycleOutcomeIdle {
		l.log.WithCycleID(cycleID).Debugf("cycle finished: %s", outcome)
	}
	return outcome, nil
}

// cyclePaired routes both resource classes to one output: any occupancy on
// either intake claims a single output and drains everything into it.
func (l *Loop) cyclePaired(ctx context.Context, cycleID string) (string, error) {
	items, err := l.orch.ItemsPending(ctx)
	if err != nil {
		return "", err
	}
	fluids := false
	if !items {
		fluids, err = l.orch.FluidsPending(ctx)
		if err != nil {
			return "", err
		}
	}
	if !items && !fluids {
		return CycleOutcomeIdle, nil
	}

	out, err := l.pool.Select(ctx)
	if err != nil {
		return "", err
	}
	if out == nil {
		l.log.WithCycleID(cycleID).Warn("intake occupied but every output is busy")
		return CycleOutcomeBlocked, nil
	}

	if err := l.orch.PushAll(ctx, cycleID, out); err != nil {
		return "", err
	}
	return CycleOutcomeRouted, nil
}

// cycleIndependent routes items and fluid separately; the two classes may
// land on different outputs within the same cycle.
func (l *Loop) cycleIndependent(ctx context.Context, cycleID string) (string, error) {
	routed := false
	blocked := false

	items, err := l.orch.ItemsPending(ctx)
	if err != nil {
		return "", err
	}
	if items {
		out, err := l.pool.Select(ctx)
		if err != nil {
			return "", err
		}
		if out == nil {
			l.log.WithCycleID(cycleID).Warn("items pending but every output is busy")
			blocked = true
		} else {
			if err := l.orch.PushItems(ctx, cycleID, out); err != nil {
				return "", err
			}
			routed = true
		}
	}

	fluids, err := l.orch.FluidsPending(ctx)
	if err != nil {
		return "", err
	}
	if fluids {
		out, err := l.pool.Select(ctx)
		if err != nil {
			return "", err
		}
		if out == nil {
			l.log.WithCycleID(cycleID).Warn("fluid pending but every output is busy")
			blocked = true
		} else {
			if err := l.orch.PushFluids(ctx, cycleID, out); err != nil {
				return "", err
			}
			routed = true
		}
	}

	switch {
	case routed:
		return CycleOutcomeRouted, nil
	case blocked:
		return CycleOutcomeBlocked, nil
	default:
		return CycleOutcomeIdle, nil
	}
}
