package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStreamInterrupted is returned when a streamed reply ends before its terminating event.
var ErrStreamInterrupted = errors.New("stream ended before completion")

// TransportError is returned by Backend for a failed request. Status is the HTTP status code of the
// response, or zero when no response was received.
type TransportError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport error: %s", e.Message)
	}
	return fmt.Sprintf("transport error (HTTP %d): %s", e.Status, e.Message)
}

// maxErrorBody bounds how much of a failed response is read into the error message.
const maxErrorBody = 64 * 1024

func networkError(err error) *TransportError {
	return &TransportError{Message: err.Error()}
}

// statusError builds a TransportError from a non-2xx response. FastAPI reports failures as
// {"detail": "..."}; any other body is used verbatim.
func statusError(resp *http.Response) *TransportError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(body))
	var detail struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != nil {
		if s, ok := detail.Detail.(string); ok {
			msg = s
		} else if b, err := json.Marshal(detail.Detail); err == nil {
			msg = string(b)
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &TransportError{
		Status:  resp.StatusCode,
		Message: msg,
	}
}
