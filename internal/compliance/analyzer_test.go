package compliance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MegaGrindStone/design-assistant/internal/compliance"
	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	err error

	block   chan struct{}
	entered chan struct{}

	mu     sync.Mutex
	images []string
}

func (f *fakeBackend) AnalyzeImage(_ context.Context, filename string, image io.Reader) (models.Analysis, error) {
	data, err := io.ReadAll(image)
	if err != nil {
		return models.Analysis{}, err
	}
	f.mu.Lock()
	f.images = append(f.images, filename+":"+string(data))
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return models.Analysis{}, f.err
	}
	return models.Analysis{
		Analysis:        "The logo has enough clear space.",
		Recommendations: []string{"Use the primary color"},
	}, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.images)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"banner.png", true},
		{"photo.JPG", true},
		{"photo.jpeg", true},
		{"anim.gif", true},
		{"hero.webp", true},
		{"deck.pdf", false},
		{"logo.svg", false},
		{"png", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, compliance.Supported(tt.filename))
		})
	}
}

func TestAnalyze(t *testing.T) {
	var states []compliance.State
	backend := &fakeBackend{}
	a := compliance.NewAnalyzer(backend, func(s compliance.State) {
		states = append(states, s)
	}, discardLogger())

	require.True(t, a.Analyze(context.Background(), "banner.png", []byte("png-bytes")))

	assert.Equal(t, []string{"banner.png:png-bytes"}, backend.images)
	state := a.State()
	assert.Equal(t, "banner.png", state.Filename)
	assert.False(t, state.Analyzing)
	require.NotNil(t, state.Result)
	assert.Equal(t, []string{"Use the primary color"}, state.Result.Recommendations)

	require.Len(t, states, 2)
	assert.True(t, states[0].Analyzing)
	assert.Nil(t, states[0].Result)
	assert.False(t, states[1].Analyzing)
}

func TestAnalyzeRejectsInput(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		image    []byte
	}{
		{name: "Empty image", filename: "banner.png"},
		{name: "Unsupported type", filename: "deck.pdf", image: []byte("%PDF")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			a := compliance.NewAnalyzer(backend, nil, discardLogger())

			assert.False(t, a.Analyze(context.Background(), tt.filename, tt.image))
			assert.Zero(t, backend.calls())
			assert.Equal(t, compliance.State{}, a.State())
		})
	}
}

func TestAnalyzeFailure(t *testing.T) {
	a := compliance.NewAnalyzer(&fakeBackend{err: errors.New("HTTP 500")}, nil, discardLogger())

	require.True(t, a.Analyze(context.Background(), "banner.png", []byte("png-bytes")))

	state := a.State()
	require.NotNil(t, state.Result)
	assert.Equal(t, models.AnalysisErrorText, state.Result.Analysis)
	assert.Empty(t, state.Result.Recommendations)
	assert.Empty(t, state.Result.Sources)
}

func TestAnalyzeWhileAnalyzing(t *testing.T) {
	backend := &fakeBackend{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	a := compliance.NewAnalyzer(backend, nil, discardLogger())

	done := make(chan bool)
	go func() {
		done <- a.Analyze(context.Background(), "banner.png", []byte("png-bytes"))
	}()
	<-backend.entered

	assert.True(t, a.State().Analyzing)
	assert.False(t, a.Analyze(context.Background(), "other.png", []byte("other")))

	a.Reset()
	assert.True(t, a.State().Analyzing, "reset is ignored while analyzing")

	close(backend.block)
	require.True(t, <-done)
	assert.Equal(t, 1, backend.calls())
}

func TestReset(t *testing.T) {
	a := compliance.NewAnalyzer(&fakeBackend{}, nil, discardLogger())
	require.True(t, a.Analyze(context.Background(), "banner.png", []byte("png-bytes")))

	a.Reset()

	assert.Equal(t, compliance.State{}, a.State())
	require.True(t, a.Analyze(context.Background(), "hero.webp", []byte("webp-bytes")))
	assert.Equal(t, "hero.webp", a.State().Filename)
}
