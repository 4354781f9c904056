package models

import (
	"strings"
	"time"
)

// Message represents one entry of the conversation transcript. Apart from DownloadState, and the streamed
// content of a reply that has not ended yet, a message is never changed after it is appended.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time

	// Sources, ExampleImages and ExportData would only be filled for assistant messages.
	Sources       []Source
	ExampleImages []string
	ExportData    *ExportData

	DownloadState  DownloadState
	StreamingState StreamingState

	// IsError marks an assistant message synthesized in place of a failed reply.
	IsError bool
}

// Source is a citation attached to an assistant reply.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// ExportData describes a design asset the backend can render for an assistant reply.
type ExportData struct {
	NodeName string `json:"node_name"`
	NodeID   string `json:"node_id,omitempty"`
	FileKey  string `json:"file_key,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Role represents the role of a message participant.
type Role string

// DownloadState is the per-message state of an export asset download.
type DownloadState string

// StreamingState is the lifecycle of an assistant message while its content is being received.
type StreamingState string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"

	DownloadIdle        DownloadState = "idle"
	DownloadDownloading DownloadState = "downloading"
	DownloadComplete    DownloadState = "complete"

	StreamingStateLoading   StreamingState = "loading"
	StreamingStateStreaming StreamingState = "streaming"
	StreamingStateEnded     StreamingState = "ended"
)

// ErrorReplyText is the content of the assistant message that replaces a failed reply.
const ErrorReplyText = "Sorry, I encountered an error. Please try again."

// CanTransition reports whether a download may move from s to next. A finished download may be started
// again, but a running one can only complete or fall back to idle.
func (s DownloadState) CanTransition(next DownloadState) bool {
	switch s {
	case "", DownloadIdle, DownloadComplete:
		return next == DownloadDownloading
	case DownloadDownloading:
		return next == DownloadComplete || next == DownloadIdle
	}
	return false
}

// Filename returns the file name an exported asset is saved under. The node name is lower-cased and every
// character outside [a-z0-9-] is replaced with a dash.
func (e ExportData) Filename() string {
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, strings.ToLower(e.NodeName))
	if name == "" {
		name = "asset"
	}
	return name + ".svg"
}

// Label is the text of the download button for the asset.
func (e ExportData) Label() string {
	kind := "Asset"
	if strings.Contains(e.NodeName, "logo") {
		kind = "Logo"
	}
	label := "Download " + kind + " SVG"
	if e.Color != "" {
		label += " (" + e.Color + ")"
	}
	return label
}

// HistoryEntry is the role and content of a previous message, as echoed back to the backend.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History builds the conversation history payload from messages. Only role and content are kept.
func History(messages []Message) []HistoryEntry {
	history := make([]HistoryEntry, len(messages))
	for i, msg := range messages {
		history[i] = HistoryEntry{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return history
}
