package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MegaGrindStone/design-assistant/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Backend is the client of the design assistant backend. It exposes one method per backend capability and
// attaches the bearer token held by its Credentials to every request. Failed requests are reported as
// *TransportError and are never retried.
type Backend struct {
	baseURL string
	creds   *Credentials

	client       *http.Client
	streamClient *http.Client

	logger *slog.Logger
}

type streamEvent struct {
	Content       *string            `json:"content"`
	Sources       []models.Source    `json:"sources"`
	ExportData    *models.ExportData `json:"export_data"`
	ExampleImages []string           `json:"example_images"`
	Error         string             `json:"error"`
}

const (
	streamDoneData = "[DONE]"

	// maxAssetSize bounds the size of an exported asset.
	maxAssetSize = 20 * 1024 * 1024
)

// NewBackend creates a new Backend for the backend served at baseURL. Atomic requests give up after
// timeout; streamed replies are only bounded by their context.
func NewBackend(baseURL string, timeout time.Duration, creds *Credentials, logger *slog.Logger) Backend {
	if creds == nil {
		creds = &Credentials{}
	}
	return Backend{
		baseURL:      strings.TrimRight(baseURL, "/"),
		creds:        creds,
		client:       &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		logger:       logger.With(slog.String("module", "backend")),
	}
}

// Credentials returns the credential store the backend reads its token from.
func (b Backend) Credentials() *Credentials {
	return b.creds
}

// SendMessage sends a chat message with the conversation history and returns the complete reply.
func (b Backend) SendMessage(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	var res models.ChatResponse
	if err := b.doJSON(ctx, http.MethodPost, "/api/chat-simple", req, &res); err != nil {
		return models.ChatResponse{}, err
	}
	return res, nil
}

// SendMessageStreaming sends a chat message and returns an iterator over the reply as it is received. The
// iterator yields ReplyChunk items with consecutive sequence numbers, ReplyMetadata items for sources and
// export data, and a final ReplyEnd. If the stream breaks off before its end, the last item carries an error.
func (b Backend) SendMessageStreaming(ctx context.Context, req models.ChatRequest) iter.Seq2[models.Reply, error] {
	return func(yield func(models.Reply, error) bool) {
		body, err := json.Marshal(req)
		if err != nil {
			yield(models.Reply{}, fmt.Errorf("error marshaling request: %w", err))
			return
		}

		resp, err := b.doRequest(ctx, b.streamClient, http.MethodPost, "/api/chat", bytes.NewReader(body), "application/json")
		if err != nil {
			yield(models.Reply{}, err)
			return
		}
		defer resp.Body.Close()

		seq := 0
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield(models.Reply{}, networkError(fmt.Errorf("error reading response: %w", err)))
				return
			}

			b.logger.Debug("Received event", slog.String("event", ev.Data))

			if ev.Data == streamDoneData {
				yield(models.Reply{Kind: models.ReplyEnd}, nil)
				return
			}

			var se streamEvent
			if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
				yield(models.Reply{}, fmt.Errorf("error unmarshaling event: %w", err))
				return
			}

			if se.Error != "" {
				yield(models.Reply{}, &TransportError{Status: resp.StatusCode, Message: se.Error})
				return
			}

			if se.Content != nil {
				if !yield(models.Reply{Kind: models.ReplyChunk, Seq: seq, Text: *se.Content}, nil) {
					return
				}
				seq++
			}

			if se.Sources != nil || se.ExportData != nil || se.ExampleImages != nil {
				meta := models.ChatResponse{
					Sources:       se.Sources,
					ExportData:    se.ExportData,
					ExampleImages: se.ExampleImages,
				}
				if !yield(models.Reply{Kind: models.ReplyMetadata, Response: meta}, nil) {
					return
				}
			}
		}

		yield(models.Reply{}, ErrStreamInterrupted)
	}
}

// AnalyzeImage uploads an image for a brand compliance check.
func (b Backend) AnalyzeImage(ctx context.Context, filename string, image io.Reader) (models.Analysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return models.Analysis{}, fmt.Errorf("error writing form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Analysis{}, fmt.Errorf("error closing form: %w", err)
	}

	resp, err := b.doRequest(ctx, b.client, http.MethodPost, "/api/analyze-image", &buf, mw.FormDataContentType())
	if err != nil {
		return models.Analysis{}, err
	}
	defer resp.Body.Close()

	var res models.Analysis
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return models.Analysis{}, fmt.Errorf("error decoding response: %w", err)
	}
	return res, nil
}

// ExportAsset asks the backend to render the described asset and returns the SVG document.
func (b Backend) ExportAsset(ctx context.Context, export models.ExportData) ([]byte, error) {
	body, err := json.Marshal(export)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	resp, err := b.doRequest(ctx, b.client, http.MethodPost, "/api/export/figma", bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, networkError(fmt.Errorf("error reading asset: %w", err))
	}
	if len(data) > maxAssetSize {
		return nil, &TransportError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("asset exceeds %d bytes", maxAssetSize),
		}
	}
	return data, nil
}

// Sync starts the synchronization job of a data source, such as "figma" or "slides", and waits for its
// result. A payload reporting an error status is returned as a result, not as an error.
func (b Backend) Sync(ctx context.Context, source string, force bool) (models.SyncResult, error) {
	req := struct {
		Force bool `json:"force"`
	}{Force: force}

	var res models.SyncResult
	if err := b.doJSON(ctx, http.MethodPost, "/api/sync/"+url.PathEscape(source), req, &res); err != nil {
		return models.SyncResult{}, err
	}
	return res, nil
}

// Stats returns the current statistics of the backend's document collection.
func (b Backend) Stats(ctx context.Context) (models.Stats, error) {
	var res models.Stats
	if err := b.doJSON(ctx, http.MethodGet, "/api/stats", nil, &res); err != nil {
		return models.Stats{}, err
	}
	return res, nil
}

// Health returns the backend liveness payload.
func (b Backend) Health(ctx context.Context) (models.Health, error) {
	var res models.Health
	if err := b.doJSON(ctx, http.MethodGet, "/api/health", nil, &res); err != nil {
		return models.Health{}, err
	}
	return res, nil
}

// Search runs a semantic search over the design system documents.
func (b Backend) Search(ctx context.Context, query string, topK int) (models.SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}

	var res models.SearchResult
	if err := b.doJSON(ctx, http.MethodPost, "/api/search?"+q.Encode(), nil, &res); err != nil {
		return models.SearchResult{}, err
	}
	return res, nil
}

// SearchFigmaFiles finds Figma files of the team whose name contains query.
func (b Backend) SearchFigmaFiles(ctx context.Context, query string) (models.FigmaSearch, error) {
	q := url.Values{}
	q.Set("query", query)

	var res models.FigmaSearch
	if err := b.doJSON(ctx, http.MethodGet, "/api/figma/search?"+q.Encode(), nil, &res); err != nil {
		return models.FigmaSearch{}, err
	}
	return res, nil
}

func (b Backend) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		jsonBody, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(jsonBody)
		contentType = "application/json"
	}

	resp, err := b.doRequest(ctx, b.client, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

// doRequest sends a request and returns the response of a 2xx status. Any other status is turned into a
// *TransportError and the response body is closed.
func (b Backend) doRequest(
	ctx context.Context,
	client *http.Client,
	method, path string,
	body io.Reader,
	contentType string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := b.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, networkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		terr := statusError(resp)
		b.logger.Debug("Request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", terr.Status),
			slog.String("message", terr.Message))
		return nil, terr
	}

	return resp, nil
}
