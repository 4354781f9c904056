package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/MegaGrindStone/design-assistant/internal/services"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestBoltDBSyncRuns(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	runs := []models.SyncRun{
		{Source: "figma", StartedAt: time.Now(), Result: models.SyncResult{Status: models.SyncStatusSuccess, TotalDocuments: 10}},
		{Source: "slides", StartedAt: time.Now(), Result: models.SyncResult{Status: models.SyncStatusError, Message: "boom"}},
		{Source: "figma", StartedAt: time.Now(), Result: models.SyncResult{Status: models.SyncStatusSuccess, TotalDocuments: 12}},
	}
	for _, run := range runs {
		id, err := db.AddSyncRun(ctx, run)
		if err != nil {
			t.Fatalf("AddSyncRun() error = %v", err)
		}
		if id == "" {
			t.Error("AddSyncRun() returned empty ID")
		}
	}

	tests := []struct {
		name      string
		source    string
		limit     int
		wantTotal []int
	}{
		{
			name:      "All figma runs newest first",
			source:    "figma",
			wantTotal: []int{12, 10},
		},
		{
			name:      "Limited",
			source:    "figma",
			limit:     1,
			wantTotal: []int{12},
		},
		{
			name:      "Other source",
			source:    "slides",
			wantTotal: []int{0},
		},
		{
			name:   "Unknown source",
			source: "dropbox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.SyncRuns(ctx, tt.source, tt.limit)
			if err != nil {
				t.Fatalf("SyncRuns() error = %v", err)
			}
			if len(got) != len(tt.wantTotal) {
				t.Fatalf("SyncRuns() returned %d runs, want %d", len(got), len(tt.wantTotal))
			}
			for i, run := range got {
				if run.Source != tt.source {
					t.Errorf("run %d source = %q, want %q", i, run.Source, tt.source)
				}
				if run.Result.TotalDocuments != tt.wantTotal[i] {
					t.Errorf("run %d total = %d, want %d", i, run.Result.TotalDocuments, tt.wantTotal[i])
				}
			}
		})
	}

	slides, err := db.SyncRuns(ctx, "slides", 0)
	if err != nil {
		t.Fatal(err)
	}
	if slides[0].Result.Succeeded() || slides[0].Result.Message != "boom" {
		t.Errorf("slides run result = %+v, want the error result", slides[0].Result)
	}
}

func TestBoltDBDownloads(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	for _, name := range []string{"logo-mark.svg", "icon-close.svg"} {
		if _, err := db.AddDownload(ctx, models.Download{
			Filename: name,
			Path:     "/tmp/" + name,
			SavedAt:  time.Now(),
		}); err != nil {
			t.Fatalf("AddDownload() error = %v", err)
		}
	}

	got, err := db.Downloads(ctx)
	if err != nil {
		t.Fatalf("Downloads() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Downloads() returned %d, want 2", len(got))
	}
	if got[0].Filename != "icon-close.svg" || got[1].Filename != "logo-mark.svg" {
		t.Errorf("Downloads() = %+v, want newest first", got)
	}
	if got[0].ID == "" {
		t.Error("Downloads() returned a download without ID")
	}
}
