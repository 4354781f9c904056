package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"sync"
	"time"

	designassistant "github.com/MegaGrindStone/design-assistant"
	"github.com/MegaGrindStone/design-assistant/internal/admin"
	"github.com/MegaGrindStone/design-assistant/internal/chat"
	"github.com/MegaGrindStone/design-assistant/internal/compliance"
	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Backend is the design assistant backend as used by the web interface: chat, asset export, data source
// sync, image analysis and health.
type Backend interface {
	chat.Backend
	chat.Exporter
	admin.Backend
	compliance.Backend

	Health(ctx context.Context) (models.Health, error)
}

// Journal records finished sync jobs and saved assets.
type Journal interface {
	chat.DownloadJournal
	admin.Journal

	Downloads(ctx context.Context) ([]models.Download, error)
}

// Session holds the bearer credential the backend requests are sent with.
type Session interface {
	Set(token string)
	Clear()
	Authenticated() bool
}

// Markdown renders message content to HTML.
type Markdown interface {
	Render(source string) (template.HTML, error)
}

// Options tune the web interface.
type Options struct {
	// Streaming selects the incremental chat endpoint for new messages.
	Streaming bool
	// Sources are the data sources shown on the admin page.
	Sources []string
}

// Main handles the web interface of the design assistant. It owns the conversation of the process, pushes
// every change of it to connected browsers through server-sent events, and runs the long requests started
// by the user in the background.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  Markdown

	backend Backend
	journal Journal
	session Session
	opts    Options

	transcript *chat.Transcript
	dispatcher *chat.Dispatcher
	downloader *chat.Downloader
	tracker    *admin.Tracker
	analyzer   *compliance.Analyzer

	bg *background

	logger *slog.Logger
}

// background runs operations that outlive the request that started them.
type background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SSE event types for real-time updates.
const (
	messageSSEType  = "message"
	typingSSEType   = "typing"
	alertSSEType    = "alert"
	syncSSEType     = "sync"
	analysisSSEType = "analysis"
)

const errLoggerKey = "err"

// NewMain creates a new Main instance. It parses the templates from the embedded filesystem and wires the
// conversation, sync tracker and image analyzer so that their changes are published to the SSE server.
// journal may be nil.
func NewMain(
	backend Backend,
	saver chat.Saver,
	journal Journal,
	session Session,
	markdown Markdown,
	opts Options,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(
		designassistant.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic},
				}, true
			},
		},
		templates: tmpl,
		markdown:  markdown,
		backend:   backend,
		journal:   journal,
		session:   session,
		opts:      opts,
		bg:        &background{ctx: ctx, cancel: cancel},
		logger:    logger.With(slog.String("module", "handlers")),
	}

	var downloadJournal chat.DownloadJournal
	var syncJournal admin.Journal
	if journal != nil {
		downloadJournal = journal
		syncJournal = journal
	}

	m.transcript = chat.NewTranscript(m.publishConversation)
	m.dispatcher = chat.NewDispatcher(m.transcript, backend, logger)
	m.downloader = chat.NewDownloader(m.transcript, backend, saver, downloadJournal, logger)
	m.tracker = admin.NewTracker(backend, opts.Sources, syncJournal, m.publishSync, logger)
	m.analyzer = compliance.NewAnalyzer(backend, m.publishAnalysis, logger)

	return m, nil
}

// Shutdown gracefully terminates the Main instance. It waits for running background operations until ctx
// is done, cancels the ones still running, then broadcasts a close message to all connected clients and
// waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.bg.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Cancelling background operations")
	}
	m.bg.cancel()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// SSE events must carry data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// goBackground runs fn on the server lifetime context.
func (m Main) goBackground(fn func(ctx context.Context)) {
	m.bg.wg.Add(1)
	go func() {
		defer m.bg.wg.Done()
		fn(m.bg.ctx)
	}()
}

func (m Main) publish(typ string, data string) {
	msg := sse.Message{
		Type: sse.Type(typ),
	}
	msg.AppendData(data)
	if err := m.sseSrv.Publish(&msg); err != nil {
		m.logger.Error("Failed to publish event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) publishConversation(ev chat.Event) {
	switch ev.Kind {
	case chat.EventMessage:
		html, err := m.renderMessage(ev.Index, ev.Message)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.Int("index", ev.Index),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		m.publish(messageSSEType, html)
	case chat.EventTyping:
		state := "off"
		if ev.Typing {
			state = "on"
		}
		m.publish(typingSSEType, state)
	case chat.EventAlert:
		m.publish(alertSSEType, ev.Alert)
	}
}

func (m Main) publishSync(snap admin.Snapshot) {
	html, err := m.renderPartial("sync_panel", newSyncPanel(snap))
	if err != nil {
		m.logger.Error("Failed to render sync panel", slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(syncSSEType, html)
}

func (m Main) publishAnalysis(state compliance.State) {
	html, err := m.renderPartial("analysis", m.newAnalysisView(state))
	if err != nil {
		m.logger.Error("Failed to render analysis", slog.String(errLoggerKey, err.Error()))
		return
	}
	m.publish(analysisSSEType, html)
}
