// Package chat holds the conversation state: the transcript of messages, the controller that sends
// messages to the backend and merges the replies, and the controller that downloads the export assets
// attached to replies.
package chat

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/google/uuid"
)

// EventKind identifies what changed in the conversation.
type EventKind string

const (
	// EventMessage reports that the message at Index was appended or changed.
	EventMessage EventKind = "message"
	// EventTyping reports that a send started or finished.
	EventTyping EventKind = "typing"
	// EventAlert carries a notice for the user about the message at Index.
	EventAlert EventKind = "alert"
)

// Event is a change notification of the conversation.
type Event struct {
	Kind EventKind

	Index   int
	Message models.Message

	Typing bool
	Alert  string
}

// Listener receives conversation events. It is called while the transcript is locked, so events arrive in
// the order the changes were made, and it must not call back into the Transcript.
type Listener func(Event)

// ErrIndexOutOfRange is returned for a transcript position that does not exist.
var ErrIndexOutOfRange = errors.New("message index out of range")

// Transcript is the ordered sequence of messages of one conversation. Messages are addressed by their
// position. Positions are stable: the transcript only grows, and the only in-place changes are the
// streamed content of an unfinished reply and the download state of a message.
type Transcript struct {
	mu       sync.RWMutex
	messages []models.Message
	listener Listener
}

// NewTranscript creates an empty transcript. listener may be nil.
func NewTranscript(listener Listener) *Transcript {
	return &Transcript{listener: listener}
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// At returns the message at index.
func (t *Transcript) At(index int) (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.messages) {
		return models.Message{}, false
	}
	return t.messages[index], true
}

// Messages returns a snapshot of all messages.
func (t *Transcript) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// History returns the role and content of the messages before index.
func (t *Transcript) History(index int) []models.HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	index = min(max(index, 0), len(t.messages))
	return models.History(t.messages[:index])
}

func (t *Transcript) notify(ev Event) {
	if t.listener != nil {
		t.listener(ev)
	}
}

func (t *Transcript) notifyLocked(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify(ev)
}

// append adds msg at the end and returns its index. ID, timestamp and states are filled in when unset.
func (t *Transcript) append(msg models.Message) int {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.DownloadState == "" {
		msg.DownloadState = models.DownloadIdle
	}
	if msg.StreamingState == "" {
		msg.StreamingState = models.StreamingStateEnded
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	index := len(t.messages) - 1
	t.notify(Event{Kind: EventMessage, Index: index, Message: msg})
	return index
}

// updateStreaming applies fn to the unfinished reply at index.
func (t *Transcript) updateStreaming(index int, fn func(*models.Message)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.messages) {
		return ErrIndexOutOfRange
	}
	msg := &t.messages[index]
	if msg.StreamingState == models.StreamingStateEnded {
		return fmt.Errorf("message %d has already ended", index)
	}
	fn(msg)
	t.notify(Event{Kind: EventMessage, Index: index, Message: *msg})
	return nil
}

// beginDownload moves the message at index to the downloading state and returns its export data. It
// reports false, changing nothing, if the message has no export data or is already downloading.
func (t *Transcript) beginDownload(index int) (models.ExportData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.messages) {
		return models.ExportData{}, false
	}
	msg := &t.messages[index]
	if msg.ExportData == nil || !msg.DownloadState.CanTransition(models.DownloadDownloading) {
		return models.ExportData{}, false
	}
	msg.DownloadState = models.DownloadDownloading
	t.notify(Event{Kind: EventMessage, Index: index, Message: *msg})
	return *msg.ExportData, true
}

// endDownload moves a downloading message at index to next, which is either complete or idle.
func (t *Transcript) endDownload(index int, next models.DownloadState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.messages) {
		return ErrIndexOutOfRange
	}
	msg := &t.messages[index]
	if msg.DownloadState != models.DownloadDownloading || !msg.DownloadState.CanTransition(next) {
		return fmt.Errorf("invalid download transition of message %d: %s to %s", index, msg.DownloadState, next)
	}
	msg.DownloadState = next
	t.notify(Event{Kind: EventMessage, Index: index, Message: *msg})
	return nil
}
