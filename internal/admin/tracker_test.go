package admin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MegaGrindStone/design-assistant/internal/admin"
	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	results  map[string]models.SyncResult
	errs     map[string]error
	stats    models.Stats
	statsErr error

	// block holds every Sync call until it is closed; entered receives one value per call.
	block   chan struct{}
	entered chan string

	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeBackend) Sync(_ context.Context, source string, force bool) (models.SyncResult, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[source]++
	f.mu.Unlock()

	if force {
		return models.SyncResult{}, errors.New("unexpected force")
	}
	if f.entered != nil {
		f.entered <- source
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.errs[source]; err != nil {
		return models.SyncResult{}, err
	}
	return f.results[source], nil
}

func (f *fakeBackend) Stats(context.Context) (models.Stats, error) {
	if f.statsErr != nil {
		return models.Stats{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeBackend) callCount(source string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[source]
}

type fakeJournal struct {
	mu   sync.Mutex
	runs []models.SyncRun
}

func (f *fakeJournal) AddSyncRun(_ context.Context, run models.SyncRun) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return "1", nil
}

func (f *fakeJournal) SyncRuns(_ context.Context, source string, _ int) ([]models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []models.SyncRun
	for _, run := range f.runs {
		if run.Source == source {
			runs = append(runs, run)
		}
	}
	return runs, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func figmaResult() models.SyncResult {
	return models.SyncResult{
		Status:         models.SyncStatusSuccess,
		Message:        "Synced 1 Figma files",
		TotalDocuments: 120,
		Synced: map[string][]models.SyncedItem{
			"files": {{Name: "Design System"}},
		},
	}
}

func TestRunSync(t *testing.T) {
	backend := &fakeBackend{
		results: map[string]models.SyncResult{"figma": figmaResult()},
		stats:   models.Stats{TotalDocuments: 120, CollectionName: "design_system"},
	}
	journal := &fakeJournal{}

	var (
		mu    sync.Mutex
		snaps []admin.Snapshot
	)
	tracker := admin.NewTracker(backend, nil, journal, func(s admin.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	}, discardLogger())

	assert.Equal(t, admin.DefaultSources, tracker.Sources())
	require.True(t, tracker.RunSync(context.Background(), "figma"))

	job, ok := tracker.Job("figma")
	require.True(t, ok)
	assert.False(t, job.InProgress)
	require.NotNil(t, job.LastResult)
	assert.True(t, job.LastResult.Succeeded())
	assert.Equal(t, 1, job.LastResult.Count())

	require.NotNil(t, tracker.Stats())
	assert.Equal(t, 120, tracker.Stats().TotalDocuments)

	slides, _ := tracker.Job("slides")
	assert.Nil(t, slides.LastResult)
	assert.False(t, slides.InProgress)

	runs, err := tracker.History(context.Background(), "figma", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Synced 1 Figma files", runs[0].Result.Message)
	assert.False(t, runs[0].FinishedAt.Before(runs[0].StartedAt))

	require.NotEmpty(t, snaps)
	first := snaps[0].Jobs[0]
	assert.True(t, first.InProgress)
	assert.Nil(t, first.LastResult)
	last := snaps[len(snaps)-1].Jobs[0]
	assert.False(t, last.InProgress)
	assert.NotNil(t, last.LastResult)
}

func TestRunSyncUnknownSource(t *testing.T) {
	backend := &fakeBackend{}
	tracker := admin.NewTracker(backend, nil, nil, nil, discardLogger())

	assert.False(t, tracker.RunSync(context.Background(), "dropbox"))
	_, ok := tracker.Job("dropbox")
	assert.False(t, ok)
	assert.Zero(t, backend.callCount("dropbox"))
}

func TestRunSyncWhileRunning(t *testing.T) {
	backend := &fakeBackend{
		results: map[string]models.SyncResult{"figma": figmaResult()},
		block:   make(chan struct{}),
		entered: make(chan string, 1),
	}
	tracker := admin.NewTracker(backend, nil, nil, nil, discardLogger())

	done := make(chan bool)
	go func() {
		done <- tracker.RunSync(context.Background(), "figma")
	}()
	<-backend.entered

	job, _ := tracker.Job("figma")
	assert.True(t, job.InProgress)
	assert.False(t, tracker.RunSync(context.Background(), "figma"))

	close(backend.block)
	require.True(t, <-done)
	assert.Equal(t, 1, backend.callCount("figma"))
}

func TestRunSyncFailureIsIndependent(t *testing.T) {
	backend := &fakeBackend{
		results: map[string]models.SyncResult{"figma": figmaResult()},
		errs:    map[string]error{"slides": errors.New("transport error (HTTP 500): credentials missing")},
		block:   make(chan struct{}),
		entered: make(chan string, 2),
	}
	tracker := admin.NewTracker(backend, nil, nil, nil, discardLogger())

	var wg sync.WaitGroup
	for _, src := range []string{"figma", "slides"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, tracker.RunSync(context.Background(), src))
		}()
	}
	<-backend.entered
	<-backend.entered

	for _, src := range []string{"figma", "slides"} {
		job, _ := tracker.Job(src)
		assert.True(t, job.InProgress, src)
	}

	close(backend.block)
	wg.Wait()

	figma, _ := tracker.Job("figma")
	require.NotNil(t, figma.LastResult)
	assert.True(t, figma.LastResult.Succeeded())

	slides, _ := tracker.Job("slides")
	require.NotNil(t, slides.LastResult)
	assert.False(t, slides.LastResult.Succeeded())
	assert.Equal(t, models.SyncStatusError, slides.LastResult.Status)
	assert.Contains(t, slides.LastResult.Message, "credentials missing")
	assert.False(t, slides.InProgress)
}

func TestRunSyncStatsFailure(t *testing.T) {
	backend := &fakeBackend{
		results:  map[string]models.SyncResult{"figma": figmaResult()},
		statsErr: errors.New("connection refused"),
	}
	tracker := admin.NewTracker(backend, nil, nil, nil, discardLogger())

	require.True(t, tracker.RunSync(context.Background(), "figma"))

	job, _ := tracker.Job("figma")
	require.NotNil(t, job.LastResult)
	assert.True(t, job.LastResult.Succeeded())
	assert.False(t, job.InProgress)
	assert.Nil(t, tracker.Stats())
}

func TestRunAll(t *testing.T) {
	backend := &fakeBackend{
		results: map[string]models.SyncResult{
			"figma":  figmaResult(),
			"slides": {Status: models.SyncStatusSuccess, TotalDocuments: 130},
		},
	}
	tracker := admin.NewTracker(backend, []string{"slides", "figma"}, nil, nil, discardLogger())

	started := tracker.RunAll(context.Background())

	assert.Equal(t, []string{"figma", "slides"}, started)
	assert.Equal(t, []string{"slides", "figma"}, tracker.Sources())
	for _, src := range started {
		assert.Equal(t, 1, backend.callCount(src))
		job, _ := tracker.Job(src)
		require.NotNil(t, job.LastResult)
	}

	snap := tracker.Snapshot()
	require.Len(t, snap.Jobs, 2)
	assert.Equal(t, "slides", snap.Jobs[0].Source)
}

func TestHistoryWithoutJournal(t *testing.T) {
	tracker := admin.NewTracker(&fakeBackend{}, nil, nil, nil, discardLogger())

	runs, err := tracker.History(context.Background(), "figma", 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
