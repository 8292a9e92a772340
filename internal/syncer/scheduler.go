package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SulePostar/finetica-sub002/internal/drive"
	"github.com/SulePostar/finetica-sub002/internal/session"
)

// Scheduler states. Modeled as an explicit state machine with a
// compare-and-swap guard so a manual trigger racing the timer can never
// produce overlapping ticks.
const (
	stateIdle int32 = iota
	stateRunning
)

// ErrSyncInProgress is returned when a tick fires while the previous one
// is still running. The losing tick is skipped, never queued.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// Client is the slice of the drive API the scheduler drives per tick.
type Client interface {
	FindFolder(ctx context.Context, name string) (string, error)
	ListFolder(ctx context.Context, folderID string, pageSize int) ([]drive.File, error)
	TransferClient
}

// Config carries the scheduler's tick parameters.
type Config struct {
	Tenant     string
	FolderName string
	Interval   time.Duration
	PageSize   int
	Workers    int
}

// Scheduler drives the sync pipeline end to end: ensure a valid session,
// resolve the folder, enumerate, plan, materialize, summarize. One tick
// runs at a time process-wide.
type Scheduler struct {
	cfg          Config
	sessions     *session.Registry
	manifest     *Manifest
	planner      *Planner
	materializer *Materializer
	logger       *slog.Logger

	state atomic.Int32

	// newClient builds a tick-scoped drive client from the authenticated
	// handle the session manager produced. Tests inject fakes here.
	newClient func(ts drive.TokenSource) Client
}

// NewScheduler assembles a scheduler. newClient may be nil, in which case
// a real drive client against the public API is built per tick.
func NewScheduler(
	cfg Config,
	sessions *session.Registry,
	manifest *Manifest,
	planner *Planner,
	materializer *Materializer,
	newClient func(ts drive.TokenSource) Client,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	s := &Scheduler{
		cfg:          cfg,
		sessions:     sessions,
		manifest:     manifest,
		planner:      planner,
		materializer: materializer,
		newClient:    newClient,
		logger:       logger,
	}

	if s.newClient == nil {
		s.newClient = func(ts drive.TokenSource) Client {
			return drive.NewClient(drive.DefaultBaseURL, nil, ts, logger)
		}
	}

	return s
}

// Run drives ticks on the configured cadence until ctx is canceled.
// The first tick fires immediately. Tick failures are logged and the loop
// continues — a bad run never terminates the scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.String("folder", s.cfg.FolderName),
		slog.Duration("interval", s.cfg.Interval),
	)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")

			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a tick and logs the result without propagating errors.
func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.Tick(ctx)

	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Warn("tick skipped, previous tick still running")
	case err != nil:
		s.logger.Error("tick failed", slog.String("error", err.Error()))
	case summary != nil:
		s.logger.Info("tick complete",
			slog.Int("total_checked", summary.TotalChecked),
			slog.Int("downloaded", summary.Downloaded),
			slog.Int("skipped", summary.Skipped),
			slog.Int("errors", summary.Errors),
		)
	}
}

// Tick runs one full synchronization pass. Returns (nil, nil) when the
// tick was skipped for lack of a valid session — unauthenticated is a
// logged outcome, not an error, and must never crash the scheduler.
func (s *Scheduler) Tick(ctx context.Context) (*Summary, error) {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return nil, ErrSyncInProgress
	}
	defer s.state.Store(stateIdle)

	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	handle, err := s.sessions.Get(s.cfg.Tenant).EnsureValid(ctx)
	if err != nil {
		logger.Warn("sync skipped: unauthenticated", slog.String("reason", err.Error()))

		return nil, nil //nolint:nilnil // skipped tick, by contract
	}

	client := s.newClient(handle)

	folderID, err := client.FindFolder(ctx, s.cfg.FolderName)
	if errors.Is(err, drive.ErrFolderNotFound) {
		// Nothing to sync this run — a valid empty outcome.
		return s.finish(ctx, logger, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("syncer: resolving folder: %w", err)
	}

	files, err := client.ListFolder(ctx, folderID, s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("syncer: enumerating folder: %w", err)
	}

	outcomes := s.process(ctx, logger, client, files)

	return s.finish(ctx, logger, outcomes)
}

// process plans and materializes every enumerated file. Transfers run with
// bounded parallelism; outcomes are written by index so the summary counts
// are deterministic regardless of completion order.
func (s *Scheduler) process(ctx context.Context, logger *slog.Logger, client Client, files []drive.File) []Outcome {
	outcomes := make([]Outcome, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, f := range files {
		g.Go(func() error {
			plan, planErr := s.planner.Classify(gctx, f)
			if planErr != nil {
				outcomes[i] = Outcome{File: f, Kind: KindError, Reason: planErr.Error()}

				return nil // per-file isolation: never abort the batch
			}

			logger.Debug("planned file",
				slog.String("file", f.Name),
				slog.String("decision", string(plan.Decision)),
			)

			outcomes[i] = s.materializer.Materialize(gctx, client, plan)

			return nil
		})
	}

	// Workers only return nil; Wait is for completion, not error collection.
	_ = g.Wait()

	return outcomes
}

// finish aggregates outcomes into a summary, persists it, and records the
// tick timestamp.
func (s *Scheduler) finish(ctx context.Context, logger *slog.Logger, outcomes []Outcome) (*Summary, error) {
	summary := Summary{
		TotalChecked: len(outcomes),
		FolderName:   s.cfg.FolderName,
		Timestamp:    time.Now().UTC(),
	}

	for _, o := range outcomes {
		switch {
		case o.Transferred():
			summary.Downloaded++
		case o.Kind == KindSkipped:
			summary.Skipped++
		case o.Kind == KindError:
			summary.Errors++

			logger.Warn("file failed during sync",
				slog.String("file", o.File.Name),
				slog.String("reason", o.Reason),
			)
		}
	}

	if err := s.manifest.SaveLastRun(ctx, summary); err != nil {
		logger.Warn("failed to persist last-run summary", slog.String("error", err.Error()))
	}

	return &summary, nil
}

// Status reports the read-only introspection surface.
func (s *Scheduler) Status(ctx context.Context) Status {
	hasToken := s.sessions.Get(s.cfg.Tenant).HasSession()

	st := Status{
		Connected:     hasToken,
		IsRunning:     s.state.Load() == stateRunning,
		HasToken:      hasToken,
		SyncInterval:  s.cfg.Interval.String(),
		ActiveTenants: s.sessions.Tenants(),
	}

	if last, err := s.manifest.LastRun(ctx); err == nil && last != nil {
		st.LastSync = &last.Timestamp
	}

	return st
}
