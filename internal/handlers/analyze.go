package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/design-assistant/internal/compliance"
)

// maxUploadSize bounds the size of an uploaded image.
const maxUploadSize = 10 << 20

type analyzePageData struct {
	Analysis      analysisView
	Accept        []string
	Authenticated bool
}

// HandleAnalyzePage renders the brand compliance page with the state of the last analysis.
func (m Main) HandleAnalyzePage(w http.ResponseWriter, _ *http.Request) {
	data := analyzePageData{
		Analysis:      m.newAnalysisView(m.analyzer.State()),
		Accept:        compliance.SupportedExtensions,
		Authenticated: m.session.Authenticated(),
	}
	if err := m.templates.ExecuteTemplate(w, "analyze", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleAnalyze accepts an image through the "file" multipart field and analyzes it in the background.
// The result reaches the browser through the SSE stream.
func (m Main) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		m.logger.Error("Failed to read upload", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "An image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !compliance.Supported(header.Filename) {
		http.Error(w, "Unsupported image type", http.StatusUnsupportedMediaType)
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		m.logger.Error("Failed to read upload", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(image) == 0 {
		http.Error(w, "The image file is empty", http.StatusBadRequest)
		return
	}

	if m.analyzer.State().Analyzing {
		http.Error(w, "An analysis is already running", http.StatusConflict)
		return
	}

	filename := header.Filename
	m.goBackground(func(ctx context.Context) {
		if !m.analyzer.Analyze(ctx, filename, image) {
			m.logger.Warn("Analysis dropped", slog.String("filename", filename))
		}
	})

	w.WriteHeader(http.StatusAccepted)
}

// HandleAnalyzeReset clears the last analysis so another image can be uploaded.
func (m Main) HandleAnalyzeReset(w http.ResponseWriter, _ *http.Request) {
	m.analyzer.Reset()
	w.WriteHeader(http.StatusNoContent)
}
