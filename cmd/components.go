package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/artifacts"
	"github.com/xkilldash9x/clickpilot/internal/browser"
	"github.com/xkilldash9x/clickpilot/internal/candidates"
	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/geometry"
	"github.com/xkilldash9x/clickpilot/internal/humanoid"
	"github.com/xkilldash9x/clickpilot/internal/input"
	"github.com/xkilldash9x/clickpilot/internal/llmclient"
	"github.com/xkilldash9x/clickpilot/internal/metrics"
	"github.com/xkilldash9x/clickpilot/internal/records"
	"github.com/xkilldash9x/clickpilot/internal/secrets"
	"github.com/xkilldash9x/clickpilot/internal/vision"
	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

// runComponents holds everything a run owns and must release.
type runComponents struct {
	Engine  *workflow.Engine
	RunDir  *artifacts.RunDir
	Metrics *metrics.Collector

	server  *metrics.Server
	session *browser.Session
	logger  *zap.Logger
}

// Shutdown closes the browser and stops the metrics listener.
func (c *runComponents) Shutdown(ctx context.Context) {
	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.logger.Warn("Failed to close browser session.", zap.Error(err))
		}
	}
	if c.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := c.server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warn("Failed to stop metrics server.", zap.Error(err))
		}
	}
}

// openRecords loads the roster. A dry run never writes to the sheet: it
// seeds a MemoryStore from the sheet when one is configured (and seed is
// set), otherwise it starts empty.
func openRecords(ctx context.Context, cfg *config.Config, dryRun, seed bool, logger *zap.Logger) (records.Store, *records.Roster, error) {
	var store records.Store
	switch {
	case cfg.Records.SheetsID == "":
		if !dryRun {
			return nil, nil, fmt.Errorf("records.sheets_id is required unless --dry-run is set")
		}
		store = records.NewMemoryStore(nil)
	case dryRun && !seed:
		store = records.NewMemoryStore(nil)
	default:
		sheets, err := records.NewSheetsClient(ctx, cfg.Records, logger)
		if err != nil {
			return nil, nil, err
		}
		store = sheets
		if dryRun {
			values, err := sheets.Values(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("reading roster: %w", err)
			}
			store = records.NewMemoryStore(values)
		}
	}

	values, err := store.Values(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading roster: %w", err)
	}
	roster, err := records.ParseClients(values)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing roster: %w", err)
	}
	return store, roster, nil
}

// initializeRunComponents wires the engine and its collaborators.
func initializeRunComponents(ctx context.Context, cfg *config.Config, dryRun bool, store records.Store, roster *records.Roster, logger *zap.Logger) (*runComponents, error) {
	c := &runComponents{logger: logger}

	c.Metrics = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	if cfg.Metrics.Listen != "" {
		srv, err := metrics.Start(cfg.Metrics.Listen, c.Metrics, logger)
		if err != nil {
			return c, err
		}
		c.server = srv
	}

	runDir, err := artifacts.NewRunDir(cfg.Run.Dir)
	if err != nil {
		return c, err
	}
	c.RunDir = runDir
	logger.Info("Run directory assigned.", zap.String("run_id", runDir.ID()), zap.String("path", runDir.Path()))

	var deps workflow.Deps
	if dryRun {
		deps = workflow.DryRunDeps(geometry.Window{W: cfg.DOM.ViewportW, H: cfg.DOM.ViewportH}, store, roster, logger)
	} else {
		deps, err = c.liveDeps(ctx, cfg, store, roster, logger)
		if err != nil {
			return c, err
		}
	}

	c.Engine = workflow.NewEngine(deps, cfg.Workflow, logger, workflow.WithStepObserver(c.Metrics))
	return c, nil
}

func (c *runComponents) liveDeps(ctx context.Context, cfg *config.Config, store records.Store, roster *records.Roster, logger *zap.Logger) (workflow.Deps, error) {
	governor := vision.NewGovernor(cfg.Vision.Governor.Threshold, cfg.Vision.Governor.Pause, logger,
		vision.WithPauseHook(c.Metrics.ObserveGovernorPause))

	router, err := llmclient.NewClient(cfg.Vision, logger,
		llmclient.WithGovernor(governor),
		llmclient.WithObserver(c.Metrics))
	if err != nil {
		return workflow.Deps{}, fmt.Errorf("failed to create vision client: %w", err)
	}

	session, err := browser.NewSession(ctx, cfg.Browser, logger, browser.WithArtifacts(c.RunDir))
	if err != nil {
		return workflow.Deps{}, fmt.Errorf("failed to start browser: %w", err)
	}
	c.session = session

	deps := workflow.Deps{
		Browser: session,
		Resolver: vision.NewResolver(router, governor, cfg.Vision, logger,
			vision.WithArtifacts(c.RunDir),
			vision.WithSampleObserver(c.Metrics)),
		Collector:      candidates.NewCollector(session, logger),
		Selector:       candidates.NewSelector(router, candidates.Viewport{W: cfg.DOM.ViewportW, H: cfg.DOM.ViewportH}, logger),
		Validator:      router,
		Store:          store,
		Roster:         roster,
		SecretRecordID: cfg.Secrets.RecordID,
		Mapper:         geometry.Mapper{OffsetX: cfg.Geometry.OffsetX, OffsetY: cfg.Geometry.OffsetY},
		MaxCandidates:  cfg.DOM.MaxCandidates,
	}

	switch cfg.Input.Backend {
	case config.InputCDP:
		h := humanoid.New(cfg.Input.Humanoid, humanoid.NewCDPExecutor(session), logger, humanoid.WithPage(session))
		deps.Injector, deps.Window, deps.Zoom = h, h, h
	default:
		x, err := input.NewXdotool(cfg.Input.Display, logger)
		if err != nil {
			return workflow.Deps{}, err
		}
		deps.Injector, deps.Window, deps.Zoom = x, x, x
	}

	if cfg.Secrets.File != "" {
		provider, err := secrets.NewFileProvider(cfg.Secrets.File, logger)
		if err != nil {
			return workflow.Deps{}, err
		}
		deps.Secrets = provider
	}
	return deps, nil
}
