package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// SSE event names
const (
	EventStep     = "step"
	EventComplete = "complete"
	EventError    = "error"
)

// SSEWriter writes Server-Sent Events. It is safe for concurrent use; pipeline
// stages running in parallel report through the same writer.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
	closed  bool
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one event with a sequential id. Events after a terminal
// complete or error event are dropped.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) finish(event string, data any) error {
	err := s.WriteEvent(event, data)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// WriteError sends the terminal error event
func (s *SSEWriter) WriteError(status int, message string) error {
	return s.finish(EventError, map[string]any{"error": message, "status": status})
}

// WriteComplete sends the terminal event carrying the finished record
func (s *SSEWriter) WriteComplete(record any) error {
	return s.finish(EventComplete, record)
}
