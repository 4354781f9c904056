package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/MegaGrindStone/design-assistant/internal/models"
)

type adminPageData struct {
	Panel         syncPanel
	Authenticated bool
}

type syncAllResponse struct {
	Started []string `json:"started"`
}

const defaultHistoryLimit = 10

// HandleAdmin renders the data source page and refreshes the collection statistics in the background.
func (m Main) HandleAdmin(w http.ResponseWriter, _ *http.Request) {
	m.goBackground(m.tracker.RefreshStats)

	data := adminPageData{
		Panel:         newSyncPanel(m.tracker.Snapshot()),
		Authenticated: m.session.Authenticated(),
	}
	if err := m.templates.ExecuteTemplate(w, "admin", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSync starts the sync job of the {source} path value. Unknown sources are rejected with 404 and a
// source whose job is already running with 409.
func (m Main) HandleSync(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	job, ok := m.tracker.Job(source)
	if !ok {
		http.Error(w, "Unknown source", http.StatusNotFound)
		return
	}
	if job.InProgress {
		http.Error(w, "Sync already in progress", http.StatusConflict)
		return
	}

	m.goBackground(func(ctx context.Context) {
		m.tracker.RunSync(ctx, source)
	})

	w.WriteHeader(http.StatusAccepted)
}

// HandleSyncAll starts the sync jobs of every source that is not already running and responds with the
// sources that will run.
func (m Main) HandleSyncAll(w http.ResponseWriter, _ *http.Request) {
	var started []string
	for _, src := range m.tracker.Sources() {
		if job, ok := m.tracker.Job(src); ok && !job.InProgress {
			started = append(started, src)
		}
	}
	slices.Sort(started)

	m.goBackground(func(ctx context.Context) {
		m.tracker.RunAll(ctx)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(syncAllResponse{Started: started}); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleStats fetches the collection statistics from the backend and responds with them.
func (m Main) HandleStats(w http.ResponseWriter, r *http.Request) {
	m.tracker.RefreshStats(r.Context())
	stats := m.tracker.Stats()
	if stats == nil {
		http.Error(w, "Statistics are unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, m.logger, stats)
}

// HandleHistory responds with the finished sync runs of the {source} path value, newest first. The
// optional "limit" query parameter caps the number of runs.
func (m Main) HandleHistory(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if _, ok := m.tracker.Job(source); !ok {
		http.Error(w, "Unknown source", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := m.tracker.History(r.Context(), source, limit)
	if err != nil {
		m.logger.Error("Failed to get sync history",
			slog.String("source", source),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	writeJSON(w, m.logger, runs)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

// HandleDownloads responds with the saved assets, newest first. It responds with an empty list when the
// server runs without a journal.
func (m Main) HandleDownloads(w http.ResponseWriter, r *http.Request) {
	downloads := []models.Download{}
	if m.journal != nil {
		ds, err := m.journal.Downloads(r.Context())
		if err != nil {
			m.logger.Error("Failed to get downloads", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ds != nil {
			downloads = ds
		}
	}
	writeJSON(w, m.logger, downloads)
}
