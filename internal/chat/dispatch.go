package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/design-assistant/internal/models"
)

// Backend sends chat messages, either waiting for the whole reply or receiving it incrementally.
type Backend interface {
	SendMessage(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
	SendMessageStreaming(ctx context.Context, req models.ChatRequest) iter.Seq2[models.Reply, error]
}

var (
	// ErrChunkOrder is reported when a streamed chunk arrives out of sequence.
	ErrChunkOrder = errors.New("reply chunk out of order")
	// ErrIncompleteReply is reported when a reply sequence ends without a complete or end item.
	ErrIncompleteReply = errors.New("reply ended before completion")
)

// Dispatcher sends user messages to the backend and merges the replies into the transcript. At most one
// send is in flight at a time.
type Dispatcher struct {
	transcript *Transcript
	backend    Backend

	mu      sync.Mutex
	sending bool

	logger *slog.Logger
}

// NewDispatcher creates a new Dispatcher appending to transcript.
func NewDispatcher(transcript *Transcript, backend Backend, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transcript: transcript,
		backend:    backend,
		logger:     logger.With(slog.String("module", "dispatcher")),
	}
}

// Sending reports whether a send is in flight.
func (d *Dispatcher) Sending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sending
}

// Send appends text as a user message and waits for the complete reply, which is appended as an assistant
// message. A failed request is recorded as an error message; it is never returned. Send reports false,
// without changing anything, if text is blank or another send is in flight.
func (d *Dispatcher) Send(ctx context.Context, text string) bool {
	return d.send(ctx, text, false)
}

// SendStreaming is like Send, but receives the reply incrementally. A placeholder assistant message is
// appended as soon as the request is made and grows with every chunk received. Sources and export data
// are attached once the stream ends.
func (d *Dispatcher) SendStreaming(ctx context.Context, text string) bool {
	return d.send(ctx, text, true)
}

func (d *Dispatcher) send(ctx context.Context, text string, stream bool) bool {
	run, ok := d.Begin(text, stream)
	if !ok {
		return false
	}
	run(ctx)
	return true
}

// Begin reserves the dispatcher for text and appends it as a user message right away. The returned
// function requests the reply, streamed or not, and releases the dispatcher when it returns; it must be
// called exactly once. Begin reports false, without changing anything, if text is blank or another send is
// in flight.
func (d *Dispatcher) Begin(text string, stream bool) (func(ctx context.Context), bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	if !d.acquire() {
		return nil, false
	}

	userIdx := d.transcript.append(models.Message{
		Role:    models.RoleUser,
		Content: text,
	})
	d.transcript.notifyLocked(Event{Kind: EventTyping, Typing: true})

	return func(ctx context.Context) {
		defer d.release()
		d.reply(ctx, text, userIdx, stream)
	}, true
}

func (d *Dispatcher) reply(ctx context.Context, text string, userIdx int, stream bool) {
	req := models.ChatRequest{
		Message:             text,
		ConversationHistory: d.transcript.History(userIdx),
	}

	var replies iter.Seq2[models.Reply, error]
	placeholder := -1
	if stream {
		replies = d.backend.SendMessageStreaming(ctx, req)
		placeholder = d.transcript.append(models.Message{
			Role:           models.RoleAssistant,
			StreamingState: models.StreamingStateLoading,
		})
	} else {
		replies = d.complete(ctx, req)
	}

	if err := d.apply(replies, placeholder); err != nil {
		d.logger.Error("Failed to get reply",
			slog.String("message", text),
			slog.Bool("stream", stream),
			slog.String("err", err.Error()))
		d.fail(placeholder)
	}
}

func (d *Dispatcher) acquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sending {
		return false
	}
	d.sending = true
	return true
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.sending = false
	d.mu.Unlock()

	d.transcript.notifyLocked(Event{Kind: EventTyping, Typing: false})
}

// complete wraps the atomic endpoint into a reply sequence of one item.
func (d *Dispatcher) complete(ctx context.Context, req models.ChatRequest) iter.Seq2[models.Reply, error] {
	return func(yield func(models.Reply, error) bool) {
		res, err := d.backend.SendMessage(ctx, req)
		if err != nil {
			yield(models.Reply{}, err)
			return
		}
		yield(models.Reply{Kind: models.ReplyComplete, Response: res}, nil)
	}
}

// apply consumes a reply sequence. Without a placeholder the sequence must be a single complete reply; with
// one, chunks are appended to the placeholder in sequence order and metadata is held back until the end.
func (d *Dispatcher) apply(replies iter.Seq2[models.Reply, error], placeholder int) error {
	nextSeq := 0
	var meta models.ChatResponse

	for reply, err := range replies {
		if err != nil {
			return err
		}

		switch reply.Kind {
		case models.ReplyComplete:
			if placeholder >= 0 {
				return d.finish(placeholder, reply.Response, true)
			}
			d.transcript.append(assistantMessage(reply.Response))
			return nil
		case models.ReplyChunk:
			if placeholder < 0 {
				return fmt.Errorf("unexpected chunk in atomic reply")
			}
			if reply.Seq != nextSeq {
				return fmt.Errorf("%w: got %d, want %d", ErrChunkOrder, reply.Seq, nextSeq)
			}
			nextSeq++
			err := d.transcript.updateStreaming(placeholder, func(msg *models.Message) {
				msg.Content += reply.Text
				msg.StreamingState = models.StreamingStateStreaming
			})
			if err != nil {
				return err
			}
		case models.ReplyMetadata:
			meta.MergeMetadata(reply.Response)
		case models.ReplyEnd:
			if placeholder < 0 {
				return fmt.Errorf("unexpected end of atomic reply")
			}
			return d.finish(placeholder, meta, false)
		default:
			return fmt.Errorf("unknown reply kind %q", reply.Kind)
		}
	}

	return ErrIncompleteReply
}

// finish attaches the reply metadata to the placeholder and ends it. With replaceContent the placeholder's
// content is replaced by the response text.
func (d *Dispatcher) finish(placeholder int, res models.ChatResponse, replaceContent bool) error {
	final := assistantMessage(res)
	return d.transcript.updateStreaming(placeholder, func(msg *models.Message) {
		if replaceContent {
			msg.Content = final.Content
		}
		msg.Sources = final.Sources
		msg.ExampleImages = final.ExampleImages
		msg.ExportData = final.ExportData
		msg.StreamingState = models.StreamingStateEnded
	})
}

// fail records a failed reply, either by turning the placeholder into an error message or by appending one.
func (d *Dispatcher) fail(placeholder int) {
	if placeholder >= 0 {
		err := d.transcript.updateStreaming(placeholder, func(msg *models.Message) {
			msg.Content = models.ErrorReplyText
			msg.Sources = nil
			msg.ExampleImages = nil
			msg.ExportData = nil
			msg.IsError = true
			msg.StreamingState = models.StreamingStateEnded
		})
		if err == nil {
			return
		}
		d.logger.Warn("Failed to mark streamed reply as failed",
			slog.Int("index", placeholder),
			slog.String("err", err.Error()))
	}

	d.transcript.append(models.Message{
		Role:    models.RoleAssistant,
		Content: models.ErrorReplyText,
		IsError: true,
	})
}

func assistantMessage(res models.ChatResponse) models.Message {
	sources := res.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	var images []string
	if len(res.ExampleImages) > 0 {
		images = res.ExampleImages
	}
	return models.Message{
		Role:          models.RoleAssistant,
		Content:       res.Response,
		Sources:       sources,
		ExampleImages: images,
		ExportData:    res.ExportData,
	}
}
