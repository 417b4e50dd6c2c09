// internal/streaming/sse.go
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"research-agent/internal/models"

	"github.com/gin-contrib/sse"
)

var (
	ErrStreamingUnsupported = errors.New("streaming not supported")
	ErrStreamClosed         = errors.New("stream closed")
)

// SSEWriter writes StreamEvents as server-sent events. The body starts with
// an "event: message" line and ends with an "end" event carrying [DONE].
// Safe for concurrent use.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	opened  bool
	closed  bool
}

// NewSSEWriter sets the event-stream headers on w.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Open writes the stream preamble. Emit calls it implicitly.
func (s *SSEWriter) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open()
}

func (s *SSEWriter) open() error {
	if s.opened {
		return nil
	}
	s.opened = true
	s.w.WriteHeader(http.StatusOK)
	return s.write("event: message\n")
}

// Emit implements Emitter.
func (s *SSEWriter) Emit(ctx context.Context, event models.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.frame(string(payload))
}

// Ping writes a comment line so proxies keep the connection open.
func (s *SSEWriter) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.opened {
		return nil
	}
	return s.write(": ping\n\n")
}

// KeepAlive pings every interval until ctx is done. A non-positive interval disables it.
func (s *SSEWriter) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Ping(); err != nil {
				return
			}
		}
	}
}

// Close writes the end marker. Further Emits fail with ErrStreamClosed.
func (s *SSEWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.open(); err != nil {
		return err
	}
	s.closed = true
	if err := s.write("event: end\n"); err != nil {
		return err
	}
	return s.frame("[DONE]")
}

// frame writes one data frame. The sse encoder writes "data:" with no
// space, so the payload carries it.
func (s *SSEWriter) frame(data string) error {
	if err := sse.Encode(s.w, sse.Event{Data: " " + data}); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) write(chunk string) error {
	if _, err := fmt.Fprint(s.w, chunk); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
