package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

type fakeInitializer struct {
	session *domain.Session
	err     error
}

func (f *fakeInitializer) Init(_ context.Context, req domain.ReadingRequest) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.session != nil {
		return f.session, nil
	}
	return &domain.Session{SessionID: req.SessionID}, nil
}

type fakeStreamer struct {
	chunks []string
	err    error
	gotReq domain.ReadingRequest
}

func (f *fakeStreamer) StreamTurn(_ context.Context, req domain.ReadingRequest, emit func(string) error) error {
	f.gotReq = req
	if f.err != nil {
		return f.err
	}
	for _, chunk := range f.chunks {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

func newTestRouter(streamer *fakeStreamer) http.Handler {
	return NewRouter(&fakeInitializer{}, streamer, nil, nil).Handler()
}

func TestInitEndpoint(t *testing.T) {
	handler := newTestRouter(&fakeStreamer{})

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"session_id": "s1", "theme": "career", "locale": "ko"}`)
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/readings/init", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"session_id":"s1"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
}

func TestInitEndpointRejectsMissingSessionID(t *testing.T) {
	handler := newTestRouter(&fakeStreamer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/readings/init", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStreamEndpointFraming(t *testing.T) {
	streamer := &fakeStreamer{chunks: []string{"첫 번째 조각", "두 번째 조각", `||FOLLOWUP||["다음 질문?"]`}}
	handler := newTestRouter(streamer)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"question": "이직 시기가 궁금해요", "locale": "ko"}`)
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/readings/s1/stream", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream; charset=utf-8" {
		t.Fatalf("content type = %q", got)
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatal("buffering must be disabled for SSE")
	}

	out := rec.Body.String()
	for _, frame := range []string{
		"data: 첫 번째 조각\n\n",
		"data: 두 번째 조각\n\n",
		"data: ||FOLLOWUP||[\"다음 질문?\"]\n\n",
	} {
		if !strings.Contains(out, frame) {
			t.Fatalf("missing frame %q in:\n%s", frame, out)
		}
	}
	if !strings.HasSuffix(out, "data: [DONE]\n\n") {
		t.Fatalf("stream must terminate with [DONE]:\n%s", out)
	}

	if streamer.gotReq.SessionID != "s1" {
		t.Fatalf("session id from path = %q", streamer.gotReq.SessionID)
	}
}

func TestStreamEndpointRequiresQuestion(t *testing.T) {
	handler := newTestRouter(&fakeStreamer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/readings/s1/stream", strings.NewReader(`{}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStreamEndpointUnknownPath(t *testing.T) {
	handler := newTestRouter(&fakeStreamer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/readings/a/b/stream", strings.NewReader(`{"question":"q"}`)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(&fakeStreamer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := NewRouter(&fakeInitializer{}, &fakeStreamer{}, nil, limiter).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, req)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", second.Code)
	}

	// a different client is unaffected
	other := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	third := httptest.NewRecorder()
	handler.ServeHTTP(third, other)
	if third.Code != http.StatusOK {
		t.Fatalf("other client status = %d", third.Code)
	}
}
