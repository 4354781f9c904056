package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ChatRequest is the payload of both the atomic and the streaming chat endpoints.
type ChatRequest struct {
	Message             string         `json:"message"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
}

// ChatResponse is a complete assistant reply. It is also used to carry the metadata that arrives at the
// end of a streamed reply, in which case Response is empty.
type ChatResponse struct {
	Response      string      `json:"response"`
	Sources       []Source    `json:"sources,omitempty"`
	ExportData    *ExportData `json:"export_data,omitempty"`
	ExampleImages []string    `json:"example_images,omitempty"`
}

// ReplyKind tags a Reply.
type ReplyKind string

const (
	// ReplyComplete carries a whole reply in Response.
	ReplyComplete ReplyKind = "complete"
	// ReplyChunk carries the next piece of a streamed reply in Text.
	ReplyChunk ReplyKind = "chunk"
	// ReplyMetadata carries sources, export data or example images of a streamed reply in Response. It is
	// only applied once the stream ends.
	ReplyMetadata ReplyKind = "metadata"
	// ReplyEnd terminates a streamed reply.
	ReplyEnd ReplyKind = "end"
)

// Reply is one item of a reply sequence. An atomic reply is a single ReplyComplete; a streamed reply is any
// number of ReplyChunk and ReplyMetadata items followed by ReplyEnd.
type Reply struct {
	Kind ReplyKind

	// Seq is the position of a chunk within its stream, starting at zero.
	Seq  int
	Text string

	Response ChatResponse
}

// MergeMetadata folds the non-empty fields of other into r.
func (r *ChatResponse) MergeMetadata(other ChatResponse) {
	if other.Sources != nil {
		r.Sources = other.Sources
	}
	if other.ExportData != nil {
		r.ExportData = other.ExportData
	}
	if other.ExampleImages != nil {
		r.ExampleImages = other.ExampleImages
	}
}

// Stats is a snapshot of the backend's document collection.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
}

// Health is the backend liveness payload.
type Health struct {
	Status   string          `json:"status"`
	Version  string          `json:"version"`
	Services map[string]bool `json:"services"`
}

// Analysis is the result of a brand compliance check of an image.
type Analysis struct {
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	Sources         []Source `json:"sources"`
}

// AnalysisErrorText is the analysis shown when the compliance check failed.
const AnalysisErrorText = "Error analyzing image. Please try again."

// SearchResult is the raw result of a design system search.
type SearchResult struct {
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
	Distances []float64        `json:"distances"`
}

// FigmaFile is one hit of a Figma file name search.
type FigmaFile struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Project string `json:"project"`
	URL     string `json:"url"`
}

// FigmaSearch is the result of a Figma file name search.
type FigmaSearch struct {
	Query   string      `json:"query"`
	Results []FigmaFile `json:"results"`
	Count   int         `json:"count"`
}

// SyncStatusSuccess and SyncStatusError are the values of SyncResult.Status.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// SyncResult is the outcome of a data source synchronization job.
type SyncResult struct {
	Status            string
	Message           string
	TotalDocuments    int
	TotalFilesIndexed int

	// Synced holds the items of every synced_<kind> array of the payload, keyed by kind.
	Synced map[string][]SyncedItem
}

// SyncedItem is one synced file or presentation. Name is lifted out of Fields for display.
type SyncedItem struct {
	Name   string
	Fields map[string]any
}

// Summary lists the numeric fields of the item, such as "3 components, 2 styles".
func (i SyncedItem) Summary() string {
	keys := make([]string, 0, len(i.Fields))
	for k, v := range i.Fields {
		if _, ok := v.(float64); ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for idx, k := range keys {
		parts[idx] = fmt.Sprintf("%d %s", int(i.Fields[k].(float64)), k)
	}
	return strings.Join(parts, ", ")
}

// SyncErrorResult returns the result recorded when a sync call failed.
func SyncErrorResult(err error) SyncResult {
	return SyncResult{
		Status:  SyncStatusError,
		Message: err.Error(),
	}
}

// Succeeded reports whether the job finished successfully.
func (s SyncResult) Succeeded() bool {
	return s.Status == SyncStatusSuccess
}

// Count returns the number of items synced across all kinds.
func (s SyncResult) Count() int {
	n := 0
	for _, items := range s.Synced {
		n += len(items)
	}
	return n
}

// UnmarshalJSON decodes the backend's sync payload, collecting every synced_<kind> array.
func (s *SyncResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var res SyncResult
	for key, value := range raw {
		var err error
		switch {
		case key == "status":
			err = json.Unmarshal(value, &res.Status)
		case key == "message":
			err = json.Unmarshal(value, &res.Message)
		case key == "total_documents":
			err = json.Unmarshal(value, &res.TotalDocuments)
		case key == "total_files_indexed":
			err = json.Unmarshal(value, &res.TotalFilesIndexed)
		case strings.HasPrefix(key, "synced_"):
			var items []map[string]any
			if err = json.Unmarshal(value, &items); err != nil {
				break
			}
			if res.Synced == nil {
				res.Synced = make(map[string][]SyncedItem)
			}
			kind := strings.TrimPrefix(key, "synced_")
			for _, fields := range items {
				name, _ := fields["name"].(string)
				res.Synced[kind] = append(res.Synced[kind], SyncedItem{Name: name, Fields: fields})
			}
		}
		if err != nil {
			return err
		}
	}

	*s = res
	return nil
}

// MarshalJSON encodes the result back into the backend's payload shape.
func (s SyncResult) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"status":          s.Status,
		"total_documents": s.TotalDocuments,
	}
	if s.Message != "" {
		out["message"] = s.Message
	}
	if s.TotalFilesIndexed != 0 {
		out["total_files_indexed"] = s.TotalFilesIndexed
	}
	for kind, items := range s.Synced {
		fields := make([]map[string]any, len(items))
		for i, item := range items {
			fields[i] = item.Fields
		}
		out["synced_"+kind] = fields
	}
	return json.Marshal(out)
}
