package httpadapter

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// sseWriter frames payloads as Server-Sent Events. Each Emit writes one
// `data: <payload>\n\n` event; Done terminates the stream with `[DONE]`.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Emit writes one event. Multi-line payloads become one event with multiple
// data lines so the frame stays valid.
func (s *sseWriter) Emit(payload string) error {
	lines := strings.Split(payload, "\n")
	for _, line := range lines {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Done writes the terminal event. Write errors are ignored; the client is
// gone either way.
func (s *sseWriter) Done() {
	_, _ = io.WriteString(s.w, "data: [DONE]\n\n")
	s.flusher.Flush()
}
