package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/design-assistant/internal/chat"
	"github.com/MegaGrindStone/design-assistant/internal/models"
)

type exportResponse struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// HandleMessages accepts a user message through the "message" form field and sends it to the backend in
// the background. The user message, the assistant reply and the typing indicator reach the browser
// through the SSE stream, so the handler only acknowledges the request.
//
// Blank messages are rejected with 400, and a message sent while another one is still in flight is
// rejected with 409.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	run, ok := m.dispatcher.Begin(msg, m.opts.Streaming)
	if !ok {
		http.Error(w, "A message is already being sent", http.StatusConflict)
		return
	}
	m.goBackground(run)

	w.WriteHeader(http.StatusAccepted)
}

// HandleDownload exports the asset attached to the message at the {index} path value and saves it to
// the download directory in the background. Progress is reported through the message's download state.
func (m Main) HandleDownload(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid message index", http.StatusBadRequest)
		return
	}

	msg, ok := m.transcript.At(index)
	if !ok {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if msg.ExportData == nil {
		http.Error(w, "Message has no exportable asset", http.StatusBadRequest)
		return
	}
	if msg.DownloadState == models.DownloadDownloading {
		http.Error(w, "Download already in progress", http.StatusConflict)
		return
	}

	m.goBackground(func(ctx context.Context) {
		m.downloader.Download(ctx, index)
	})

	w.WriteHeader(http.StatusAccepted)
}

// HandleExport exports the asset described by the JSON body and saves it, without a message. It responds
// with the saved file name and the URL it is served from.
func (m Main) HandleExport(w http.ResponseWriter, r *http.Request) {
	var export models.ExportData
	if err := json.NewDecoder(r.Body).Decode(&export); err != nil {
		http.Error(w, "Invalid export request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(export.NodeName) == "" {
		http.Error(w, "node_name is required", http.StatusBadRequest)
		return
	}

	p, err := m.downloader.ExportStandalone(r.Context(), export)
	if errors.Is(err, chat.ErrExportInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		m.logger.Error("Failed to export asset",
			slog.String("node", export.NodeName),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	name := filepath.Base(p)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(exportResponse{
		Filename: name,
		URL:      "/downloads/" + name,
	}); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
