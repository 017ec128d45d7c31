package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"callqa/internal/config"
	"callqa/internal/deps"
	"callqa/internal/judge"
	"callqa/internal/logging"
	"callqa/internal/pipeline"
	"callqa/internal/preflight"
	"callqa/internal/records"
	"callqa/internal/sop"
)

// Analyzer evaluates one uploaded call.
type Analyzer interface {
	Run(ctx context.Context, req pipeline.Request) (records.CallRecord, error)
}

// Author helps operators write SOP steps.
type Author interface {
	SuggestStep(ctx context.Context, instruction string) (judge.Suggestion, error)
	FillIntents(ctx context.Context, checklist sop.Checklist) (sop.Checklist, int)
}

// Daemon owns the API server, the record store, and the single-instance lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *records.Store
	analyzer Analyzer
	author   Author
	rules    atomic.Pointer[sop.Rules]
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	inFlight atomic.Int32
	cancel   context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	DatabasePath  string        `json:"database_path"`
	LockFilePath  string        `json:"lock_file_path"`
	Calls         int           `json:"calls"`
	InFlight      int           `json:"in_flight"`
	Sections      int           `json:"sections"`
	Steps         int           `json:"steps"`
	LLMConfigured bool          `json:"llm_configured"`
	Dependencies  []deps.Status `json:"dependencies"`
}

// New constructs a daemon. author may be nil, in which case the SOP
// authoring endpoints report the LLM as unavailable.
func New(cfg *config.Config, store *records.Store, analyzer Analyzer, author Author, rules sop.Rules, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || analyzer == nil {
		return nil, errors.New("daemon requires config, store, and analyzer")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		analyzer: analyzer,
		author:   author,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.rules.Store(&rules)
	d.api = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Start acquires the lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another callqa server is already running")
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if !result.Passed {
			logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "affected requests may fail or degrade"),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("callqa server started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release server lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("callqa server stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Rules returns the rules new calls are scored against.
func (d *Daemon) Rules() sop.Rules {
	return *d.rules.Load()
}

// UpdateRules saves rules to the configured rules path and uses them for
// subsequent calls. Missing step intents are filled first when an author is
// configured; the count of filled steps is returned.
func (d *Daemon) UpdateRules(ctx context.Context, rules sop.Rules) (int, error) {
	if err := rules.Checklist.Validate(); err != nil {
		return 0, err
	}
	filled := 0
	if d.author != nil {
		rules.Checklist, filled = d.author.FillIntents(ctx, rules.Checklist)
	}
	if err := sop.Save(d.cfg.Paths.RulesPath, rules); err != nil {
		return 0, err
	}
	d.rules.Store(&rules)
	d.logger.Info("sop rules updated",
		logging.Int("sections", len(rules.Checklist)),
		logging.Int("intents_filled", filled),
	)
	return filled, nil
}

// Analyze evaluates an uploaded call.
func (d *Daemon) Analyze(ctx context.Context, req pipeline.Request) (records.CallRecord, error) {
	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	if req.Rules == nil {
		rules := d.Rules()
		req.Rules = &rules
	}
	return d.analyzer.Run(ctx, req)
}

// Status returns runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	rules := d.Rules()
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		InFlight:      int(d.inFlight.Load()),
		Sections:      len(rules.Checklist),
		Steps:         rules.Checklist.StepCount(),
		LLMConfigured: d.cfg.LLM.APIKey != "",
		Dependencies:  preflight.CheckSystemDeps(ctx, d.cfg),
	}
	if n, err := d.store.Count(ctx); err == nil {
		status.Calls = n
	} else {
		d.logger.Warn("count calls failed", logging.Error(err))
	}
	return status
}
