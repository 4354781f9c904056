package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/models"
)

// Exporter renders the asset described by an ExportData.
type Exporter interface {
	ExportAsset(ctx context.Context, export models.ExportData) ([]byte, error)
}

// Saver stores a downloaded asset under a file name and returns where it was written.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// DownloadJournal records saved assets.
type DownloadJournal interface {
	AddDownload(ctx context.Context, download models.Download) (string, error)
}

// DownloadFailedText is the alert shown when an asset could not be exported.
const DownloadFailedText = "Failed to export asset. Please try again."

// ErrExportInProgress is returned by ExportStandalone while another standalone export is running.
var ErrExportInProgress = errors.New("an export is already in progress")

// Downloader downloads the export assets attached to transcript messages. Each message has its own
// download state, so downloads of different messages run independently.
type Downloader struct {
	transcript *Transcript
	exporter   Exporter
	saver      Saver
	journal    DownloadJournal

	mu        sync.Mutex
	exporting bool

	logger *slog.Logger
}

// NewDownloader creates a new Downloader for the messages of transcript. journal may be nil.
func NewDownloader(
	transcript *Transcript,
	exporter Exporter,
	saver Saver,
	journal DownloadJournal,
	logger *slog.Logger,
) *Downloader {
	return &Downloader{
		transcript: transcript,
		exporter:   exporter,
		saver:      saver,
		journal:    journal,
		logger:     logger.With(slog.String("module", "downloader")),
	}
}

// Download exports the asset attached to the message at index and saves it under the name derived from the
// asset's node name. The message is marked downloading while the request runs, then complete, or idle again
// with an alert if the export failed. Download reports false, without doing anything, if the message has no
// export data or its download is already running.
func (d *Downloader) Download(ctx context.Context, index int) bool {
	export, ok := d.transcript.beginDownload(index)
	if !ok {
		return false
	}

	next := models.DownloadComplete
	if _, err := d.fetch(ctx, export); err != nil {
		d.logger.Error("Failed to download asset",
			slog.Int("index", index),
			slog.String("nodeName", export.NodeName),
			slog.String("err", err.Error()))
		next = models.DownloadIdle
	}

	if err := d.transcript.endDownload(index, next); err != nil {
		d.logger.Error("Failed to end download",
			slog.Int("index", index),
			slog.String("err", err.Error()))
	}
	if next == models.DownloadIdle {
		d.transcript.notifyLocked(Event{Kind: EventAlert, Index: index, Alert: DownloadFailedText})
	}
	return true
}

// ExportStandalone exports and saves an asset that is not attached to any message, returning the path
// of the saved file. Only one standalone export runs at a time.
func (d *Downloader) ExportStandalone(ctx context.Context, export models.ExportData) (string, error) {
	if export.NodeName == "" {
		return "", errors.New("asset name is required")
	}

	d.mu.Lock()
	if d.exporting {
		d.mu.Unlock()
		return "", ErrExportInProgress
	}
	d.exporting = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.exporting = false
		d.mu.Unlock()
	}()

	return d.fetch(ctx, export)
}

func (d *Downloader) fetch(ctx context.Context, export models.ExportData) (string, error) {
	data, err := d.exporter.ExportAsset(ctx, export)
	if err != nil {
		return "", fmt.Errorf("failed to export asset: %w", err)
	}

	filename := export.Filename()
	path, err := d.saver.Save(filename, data)
	if err != nil {
		return "", fmt.Errorf("failed to save asset: %w", err)
	}

	if d.journal != nil {
		_, err := d.journal.AddDownload(ctx, models.Download{
			Filename: filename,
			Path:     path,
			Export:   export,
			SavedAt:  time.Now(),
		})
		if err != nil {
			d.logger.Warn("Failed to record download",
				slog.String("filename", filename),
				slog.String("err", err.Error()))
		}
	}

	d.logger.Info("Saved asset", slog.String("path", path))
	return path, nil
}
