// Package admin tracks the backend's data source synchronization jobs and the statistics of the document
// collection they feed.
package admin

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/models"
	"golang.org/x/sync/errgroup"
)

// Backend runs sync jobs and reports collection statistics.
type Backend interface {
	Sync(ctx context.Context, source string, force bool) (models.SyncResult, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// Journal keeps the history of finished sync jobs.
type Journal interface {
	AddSyncRun(ctx context.Context, run models.SyncRun) (string, error)
	SyncRuns(ctx context.Context, source string, limit int) ([]models.SyncRun, error)
}

// JobState is the state of the sync job of one source.
type JobState struct {
	Source     string
	InProgress bool
	LastResult *models.SyncResult
}

// Listener is notified whenever the state of a job or the statistics change.
type Listener func(Snapshot)

// Snapshot is the state of every job and the last fetched statistics.
type Snapshot struct {
	Jobs  []JobState
	Stats *models.Stats
}

// Tracker runs the sync job of each source and keeps its state. A source runs at most one job at a time;
// jobs of different sources are independent of each other.
type Tracker struct {
	backend Backend
	journal Journal
	sources []string

	mu    sync.Mutex
	jobs  map[string]*JobState
	stats *models.Stats

	listener Listener
	logger   *slog.Logger
}

// DefaultSources are the data sources synced by the backend.
var DefaultSources = []string{"figma", "slides"}

// NewTracker creates a new Tracker for sources. journal and listener may be nil.
func NewTracker(backend Backend, sources []string, journal Journal, listener Listener, logger *slog.Logger) *Tracker {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	jobs := make(map[string]*JobState, len(sources))
	for _, src := range sources {
		jobs[src] = &JobState{Source: src}
	}
	return &Tracker{
		backend:  backend,
		journal:  journal,
		sources:  slices.Clone(sources),
		jobs:     jobs,
		listener: listener,
		logger:   logger.With(slog.String("module", "admin")),
	}
}

// Sources returns the tracked sources in configuration order.
func (t *Tracker) Sources() []string {
	return slices.Clone(t.sources)
}

// Job returns the state of the job of source.
func (t *Tracker) Job(source string) (JobState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[source]
	if !ok {
		return JobState{}, false
	}
	return *job, true
}

// Stats returns the last successfully fetched statistics, or nil if none were fetched yet.
func (t *Tracker) Stats() *models.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stats == nil {
		return nil
	}
	s := *t.stats
	return &s
}

// Snapshot returns the state of all jobs and the statistics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{Jobs: make([]JobState, len(t.sources))}
	for i, src := range t.sources {
		snap.Jobs[i] = *t.jobs[src]
	}
	if t.stats != nil {
		s := *t.stats
		snap.Stats = &s
	}
	return snap
}

func (t *Tracker) notifyLocked() {
	if t.listener != nil {
		t.listener(t.snapshotLocked())
	}
}

// RunSync runs the sync job of source and waits for it. The result, or an error result if the job failed,
// becomes the job's last result, and the statistics are refreshed afterwards. RunSync reports false,
// without doing anything, if the source is unknown or its job is already running.
func (t *Tracker) RunSync(ctx context.Context, source string) bool {
	if !t.start(source) {
		return false
	}

	startedAt := time.Now()
	res, err := t.backend.Sync(ctx, source, false)
	if err != nil {
		t.logger.Error("Sync failed",
			slog.String("source", source),
			slog.String("err", err.Error()))
		res = models.SyncErrorResult(err)
	}

	t.mu.Lock()
	t.jobs[source].LastResult = &res
	t.notifyLocked()
	t.mu.Unlock()

	t.RefreshStats(ctx)
	t.record(ctx, models.SyncRun{
		Source:     source,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Result:     res,
	})

	t.mu.Lock()
	t.jobs[source].InProgress = false
	t.notifyLocked()
	t.mu.Unlock()

	return true
}

func (t *Tracker) start(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[source]
	if !ok || job.InProgress {
		return false
	}
	job.InProgress = true
	job.LastResult = nil
	t.notifyLocked()
	return true
}

// RunAll runs the jobs of every source that is not already running, concurrently, and waits for all of
// them. It returns the sources that were started.
func (t *Tracker) RunAll(ctx context.Context) []string {
	var (
		mu      sync.Mutex
		started []string
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range t.sources {
		g.Go(func() error {
			if t.RunSync(ctx, src) {
				mu.Lock()
				started = append(started, src)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(started)
	return started
}

// RefreshStats fetches the collection statistics. A failure is logged and leaves the previous
// statistics in place.
func (t *Tracker) RefreshStats(ctx context.Context) {
	stats, err := t.backend.Stats(ctx)
	if err != nil {
		t.logger.Warn("Failed to load stats", slog.String("err", err.Error()))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = &stats
	t.notifyLocked()
}

// History returns up to limit finished runs of source, newest first.
func (t *Tracker) History(ctx context.Context, source string, limit int) ([]models.SyncRun, error) {
	if t.journal == nil {
		return nil, nil
	}
	return t.journal.SyncRuns(ctx, source, limit)
}

func (t *Tracker) record(ctx context.Context, run models.SyncRun) {
	if t.journal == nil {
		return
	}
	if _, err := t.journal.AddSyncRun(ctx, run); err != nil {
		t.logger.Warn("Failed to record sync run",
			slog.String("source", run.Source),
			slog.String("err", err.Error()))
	}
}
