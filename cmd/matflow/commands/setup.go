package commands

import (
	"context"
	"fmt"

	"github.com/matflow/matflow/pkg/config"
	"github.com/matflow/matflow/pkg/controller"
	"github.com/matflow/matflow/pkg/journal"
	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/telemetry"
)

// app bundles the shared runtime dependencies every command needs.
type app struct {
	cfg     *config.Config
	log     *telemetry.Logger
	metrics *telemetry.Metrics
	dir     nodes.Directory
	journal *journal.Journal
	retrier *controller.Retrier
}

// loadApp loads the config file and builds the shared dependencies.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	log, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	metrics, err := telemetry.NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
	}

	dir, err := nodes.NewRESTDirectory(nodes.RESTConfig{
		BaseURL:   cfg.Gateway.BaseURL,
		Timeout:   cfg.Gateway.Timeout.Std(),
		AuthToken: cfg.Gateway.AuthToken,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		dir:     dir,
		journal: jrnl,
	}
	a.retrier = controller.NewRetrier(cfg.Control.MaxAttempts, cfg.Control.RetryInterval.Std(), log, metrics)
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if err := a.journal.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close journal")
	}
}

// classifierConfig translates the file config into role matchers.
func (a *app) classifierConfig() (controller.ClassifierConfig, error) {
	cfg := controller.ClassifierConfig{
		Reconfigure:       a.cfg.Control.Reconfigure,
		ReservedAddresses: a.cfg.Roles.ReservedAddresses,
	}

	if id := a.cfg.Roles.IntakeItems; id != "" {
		cfg.IntakeItems = controller.NewExactMatcher(controller.RoleIntakeItems, id)
	}
	if id := a.cfg.Roles.IntakeFluids; id != "" {
		cfg.IntakeFluids = controller.NewExactMatcher(controller.RoleIntakeFluids, id)
	}
	if id := a.cfg.Roles.ConfigReturn; id != "" {
		cfg.ConfigReturn = controller.NewExactMatcher(controller.RoleConfigReturn, id)
	}

	var err error
	if pattern := a.cfg.Roles.OutputItems; pattern != "" {
		cfg.OutputItems, err = controller.NewPatternMatcher(controller.RoleOutputItems, pattern)
		if err != nil {
			return cfg, err
		}
	}
	if pattern := a.cfg.Roles.OutputFluids; pattern != "" {
		cfg.OutputFluids, err = controller.NewPatternMatcher(controller.RoleOutputFluids, pattern)
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// discover runs classification against the gateway.
func (a *app) discover(ctx context.Context) (*controller.Bindings, error) {
	ccfg, err := a.classifierConfig()
	if err != nil {
		return nil, err
	}
	classifier := controller.NewClassifier(a.dir, ccfg, a.retrier, a.log)
	return classifier.Discover(ctx)
}

// buildLoop assembles the full controller: discovery, pairing, pool,
// orchestrator, and the control loop.
func (a *app) buildLoop(ctx context.Context) (*controller.Loop, error) {
	bindings, err := a.discover(ctx)
	if err != nil {
		return nil, err
	}

	pairer := controller.NewPairer(controller.PairingConfig{
		Enabled: a.cfg.Pairing.Enabled,
		Offset: nodes.Coordinate{
			X: a.cfg.Pairing.Offset.X,
			Y: a.cfg.Pairing.Offset.Y,
			Z: a.cfg.Pairing.Offset.Z,
		},
	}, a.retrier, a.log)

	outputs, err := pairer.Pair(ctx, bindings.OutputItems, bindings.OutputFluids)
	if err != nil {
		return nil, err
	}

	pool := controller.NewPool(outputs, controller.PoolConfig{
		RoundRobin:   a.cfg.Control.RoundRobin,
		ResidualItem: a.cfg.Control.MarkerItem,
	}, a.retrier, a.log, a.metrics)

	orch := controller.NewOrchestrator(controller.OrchestratorConfig{
		MarkerItem:  a.cfg.Control.MarkerItem,
		Reconfigure: a.cfg.Control.Reconfigure,
	}, bindings.IntakeItems, bindings.IntakeFluids, bindings.ConfigReturn,
		a.retrier, a.log, a.metrics, a.journal)

	return controller.NewLoop(controller.LoopConfig{
		Pairing:      a.cfg.Pairing.Enabled,
		PollInterval: a.cfg.Control.PollInterval.Std(),
	}, pool, orch, a.log, a.metrics, a.journal), nil
}
