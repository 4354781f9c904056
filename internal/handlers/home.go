package handlers

import (
	"log/slog"
	"net/http"
)

type homePageData struct {
	Messages      []message
	Typing        bool
	Authenticated bool
	Examples      []string
}

// HandleHome renders the chat page with the current transcript.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	transcript := m.transcript.Messages()
	msgs := make([]message, len(transcript))
	for i, msg := range transcript {
		view, err := m.newMessage(i, msg)
		if err != nil {
			m.logger.Error("Failed to render contents",
				slog.Int("index", i),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		msgs[i] = view
	}

	data := homePageData{
		Messages:      msgs,
		Typing:        m.dispatcher.Sending(),
		Authenticated: m.session.Authenticated(),
		Examples:      exampleQuestions,
	}

	if err := m.templates.ExecuteTemplate(w, "home", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE streams conversation, sync and analysis updates to the browser.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
