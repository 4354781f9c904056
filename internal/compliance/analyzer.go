// Package compliance runs brand compliance checks of uploaded images through the backend.
package compliance

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/MegaGrindStone/design-assistant/internal/models"
)

// Backend analyzes an image for brand compliance.
type Backend interface {
	AnalyzeImage(ctx context.Context, filename string, image io.Reader) (models.Analysis, error)
}

// State is the analyzer's view state.
type State struct {
	Filename  string
	Analyzing bool
	Result    *models.Analysis
}

// Listener is notified whenever the state changes.
type Listener func(State)

// SupportedExtensions are the image types accepted for analysis.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// Analyzer runs one image analysis at a time and keeps the result of the last one.
type Analyzer struct {
	backend Backend

	mu    sync.Mutex
	state State

	listener Listener
	logger   *slog.Logger
}

// NewAnalyzer creates a new Analyzer. listener may be nil.
func NewAnalyzer(backend Backend, listener Listener, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		backend:  backend,
		listener: listener,
		logger:   logger.With(slog.String("module", "compliance")),
	}
}

// Supported reports whether filename has an image extension the backend accepts.
func Supported(filename string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(filename)))
}

// State returns the current state.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Analyze sends the image to the backend and waits for the analysis. A failed analysis is stored as a
// result with an error text. Analyze reports false, without doing anything, if the image is empty or
// unsupported, or another analysis is running.
func (a *Analyzer) Analyze(ctx context.Context, filename string, image []byte) bool {
	if len(image) == 0 || !Supported(filename) {
		return false
	}

	a.mu.Lock()
	if a.state.Analyzing {
		a.mu.Unlock()
		return false
	}
	a.state = State{Filename: filename, Analyzing: true}
	a.notifyLocked()
	a.mu.Unlock()

	res, err := a.backend.AnalyzeImage(ctx, filename, bytes.NewReader(image))
	if err != nil {
		a.logger.Error("Failed to analyze image",
			slog.String("filename", filename),
			slog.String("err", err.Error()))
		res = models.Analysis{
			Analysis:        models.AnalysisErrorText,
			Sources:         []models.Source{},
			Recommendations: []string{},
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Analyzing = false
	a.state.Result = &res
	a.notifyLocked()
	return true
}

// Reset clears the last result so a different image can be uploaded. It does nothing while an analysis
// is running.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Analyzing {
		return
	}
	a.state = State{}
	a.notifyLocked()
}

func (a *Analyzer) notifyLocked() {
	if a.listener != nil {
		a.listener(a.state)
	}
}
