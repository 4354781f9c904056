package handlers

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MegaGrindStone/design-assistant/internal/admin"
	"github.com/MegaGrindStone/design-assistant/internal/compliance"
	"github.com/MegaGrindStone/design-assistant/internal/models"
)

type message struct {
	Index     int
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time

	Sources       []models.Source
	ExampleImages []string
	ExportData    *models.ExportData

	DownloadState  string
	StreamingState string
	IsError        bool
}

type syncPanel struct {
	Jobs  []admin.JobState
	Stats *models.Stats
}

type analysisView struct {
	Filename  string
	Analyzing bool
	Result    *models.Analysis
	Content   template.HTML
}

var exampleQuestions = []string{
	"What are our brand colors?",
	"Show me button components",
	"What's our typography system?",
	"How should I use our logo?",
}

var sourceTitles = map[string]string{
	"figma":  "Figma",
	"slides": "Google Slides",
}

var templateFuncs = template.FuncMap{
	"sourceTitle": sourceTitle,
	"kindTitle":   kindTitle,
	"clock":       clock,
}

// kindTitle upper-cases the first letter of a synced item kind, such as "files".
func kindTitle(kind string) string {
	r, size := utf8.DecodeRuneInString(kind)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + kind[size:]
}

func clock(t time.Time) string {
	return t.Format(time.Kitchen)
}

func sourceTitle(source string) string {
	if title, ok := sourceTitles[source]; ok {
		return title
	}
	return source
}

func newSyncPanel(snap admin.Snapshot) syncPanel {
	return syncPanel{
		Jobs:  snap.Jobs,
		Stats: snap.Stats,
	}
}

func (m Main) newMessage(index int, msg models.Message) (message, error) {
	content, err := m.markdown.Render(msg.Content)
	if err != nil {
		return message{}, err
	}
	return message{
		Index:          index,
		ID:             msg.ID,
		Role:           string(msg.Role),
		Content:        content,
		Timestamp:      msg.Timestamp,
		Sources:        msg.Sources,
		ExampleImages:  msg.ExampleImages,
		ExportData:     msg.ExportData,
		DownloadState:  string(msg.DownloadState),
		StreamingState: string(msg.StreamingState),
		IsError:        msg.IsError,
	}, nil
}

func (m Main) newAnalysisView(state compliance.State) analysisView {
	v := analysisView{
		Filename:  state.Filename,
		Analyzing: state.Analyzing,
		Result:    state.Result,
	}
	if state.Result != nil {
		content, err := m.markdown.Render(state.Result.Analysis)
		if err != nil {
			content = template.HTML(template.HTMLEscapeString(state.Result.Analysis))
		}
		v.Content = content
	}
	return v
}

func (m Main) renderMessage(index int, msg models.Message) (string, error) {
	view, err := m.newMessage(index, msg)
	if err != nil {
		return "", fmt.Errorf("failed to render contents: %w", err)
	}
	return m.renderPartial("message", view)
}

func (m Main) renderPartial(name string, data any) (string, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return sb.String(), nil
}
