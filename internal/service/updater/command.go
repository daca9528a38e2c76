package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shamu4life/helper-scripts/internal/config"
	"github.com/shamu4life/helper-scripts/internal/domain/release"
	"github.com/shamu4life/helper-scripts/internal/logger"
	"github.com/shamu4life/helper-scripts/internal/metrics"
	"github.com/shamu4life/helper-scripts/internal/repository/history"
	"github.com/shamu4life/helper-scripts/internal/service/artifact"
	"github.com/shamu4life/helper-scripts/internal/service/install"
	"github.com/shamu4life/helper-scripts/internal/service/manager"
	"github.com/shamu4life/helper-scripts/internal/service/notify"
	"github.com/shamu4life/helper-scripts/internal/service/orchestrator"
	"github.com/shamu4life/helper-scripts/internal/service/source"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// HTTPClient is used for release discovery, downloads and notifications.
	HTTPClient *http.Client
}

// OutcomeError is returned by Run when the cycle did not succeed. It
// carries the outcome so the CLI can pick the exit code.
type OutcomeError struct {
	Outcome *release.Outcome
}

func (e *OutcomeError) Error() string {
	return e.Outcome.String()
}

func (e *OutcomeError) Unwrap() error {
	return e.Outcome.Err
}

// ExitCode maps an error returned by Run to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return release.ExitOK
	}

	var outcomeErr *OutcomeError
	if errors.As(err, &outcomeErr) {
		return outcomeErr.Outcome.ExitCode()
	}

	return release.ExitFailed
}

// Run executes one update cycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	ctx = logger.ToContext(ctx, logger.Build(level, cfg.LogFormat))
	ctx = logger.WithName(ctx, "helper-updater")

	orch, err := newOrchestrator(cfg, opts.HTTPClient)
	if err != nil {
		return fmt.Errorf("initialize updater: %w", err)
	}

	out := orch.RunUpdateCycle(ctx)

	// A refused cycle must not overwrite what the running one records.
	if out.Stage != release.StageLock {
		record(ctx, cfg, out)
	}

	if out.ExitCode() != release.ExitOK {
		return &OutcomeError{Outcome: out}
	}

	return nil
}

// newOrchestrator wires the collaborators described by cfg.
func newOrchestrator(cfg *config.Config, client *http.Client) (*orchestrator.Orchestrator, error) {
	if client == nil {
		client = http.DefaultClient
	}

	src, err := source.New(&cfg.Source, client)
	if err != nil {
		return nil, err
	}

	svc, err := manager.New(&cfg.Service, cfg.Timeouts.Probe)
	if err != nil {
		return nil, err
	}

	probe, err := install.NewProbe(cfg.Service.VersionArgs, cfg.Service.VersionPattern)
	if err != nil {
		return nil, err
	}

	oc := orchestrator.Config{
		BinaryPath:  cfg.Service.Binary,
		ServiceName: cfg.Service.Name,
		Source:      src,
		Manager:     svc,
		Downloader:  artifact.NewDownloader(client, cfg.TempDir),
		Installer:   install.NewInstaller(cfg.Service.Binary),
		Probe:       probe,
		Timeouts: orchestrator.Timeouts{
			Discover: cfg.Timeouts.Discover,
			Download: cfg.Timeouts.Download,
			Service:  cfg.Timeouts.Service,
			Probe:    cfg.Timeouts.Probe,
			Notify:   cfg.Timeouts.Notify,
		},
		NotifyOnNoUpdate: cfg.NotifyOnNoUpdate(),
		LockPath:         cfg.LockFile,
	}

	if channels := cfg.Channels(); len(channels) > 0 {
		oc.Notifier = notify.NewDispatcher(channels, client)
	}

	return orchestrator.New(oc)
}

// record stores the outcome in the history file and the metrics textfile.
// Failures are logged: the cycle already happened.
func record(ctx context.Context, cfg *config.Config, out *release.Outcome) {
	repo := history.NewFileRepository(cfg.HistoryFile)

	previous, err := repo.Load(ctx)
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		logger.WarnKV(ctx, "Cannot read previous history", "path", repo.Path(), "error", err)
	}

	rec := history.FromOutcome(out, previous)
	if err = repo.Save(ctx, rec); err != nil {
		logger.WarnKV(ctx, "Cannot write history", "path", repo.Path(), "error", err)
	}

	if cfg.MetricsFile == "" {
		return
	}

	m := metrics.New(cfg.Service.Name)
	m.Observe(out, rec.InstalledVersion)

	if err = m.WriteFile(cfg.MetricsFile); err != nil {
		logger.WarnKV(ctx, "Cannot write metrics", "path", cfg.MetricsFile, "error", err)
	}
}
