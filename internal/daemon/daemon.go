package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"bookscribe/internal/config"
	"bookscribe/internal/logging"
	"bookscribe/internal/preflight"
	"bookscribe/internal/speed"
	"bookscribe/internal/transcriber"
)

// Daemon coordinates the HTTP API and the transcription facade, and enforces
// single-instance execution with a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	tr     *transcriber.Transcriber
	store  *speed.Store

	lockPath string
	lock     *flock.Flock

	api *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, tr *transcriber.Transcriber, store *speed.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || tr == nil || store == nil {
		return nil, errors.New("daemon requires config, transcriber, and speed store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "bookscribe.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		tr:       tr,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, runs preflight, and begins serving the
// API. A missing required binary fails startup rather than surfacing later as
// per-job failures.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bookscribe instance is already running")
	}

	results := preflight.RunAll(ctx, d.cfg)
	for _, result := range results {
		if !result.Passed {
			_ = d.lock.Unlock()
			return fmt.Errorf("preflight failed: %s: %s", result.Name, result.Detail)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	// Resolve capabilities up front so the first job does not pay for it.
	d.tr.ProbeCapabilities(runCtx)

	d.running.Store(true)
	d.logger.Info("bookscribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("library", d.cfg.Paths.LibraryDir))
	return nil
}

// Stop shuts the API server down and releases the instance lock.
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
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bookscribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the bound API address, or empty before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status reports daemon runtime information together with fresh preflight
// results.
type Status struct {
	Running      bool
	PID          int
	LibraryDir   string
	SpeedDBPath  string
	LockFilePath string
	Checks       []preflight.Result
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LibraryDir:   d.cfg.Paths.LibraryDir,
		SpeedDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Checks:       preflight.RunAll(ctx, d.cfg),
	}
}
