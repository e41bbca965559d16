package domain

import "time"

// SessionState is the lifecycle state of a reading session.
type SessionState string

const (
	SessionUnknown      SessionState = "unknown"
	SessionInitializing SessionState = "initializing"
	SessionReady        SessionState = "ready"
	SessionExpired      SessionState = "expired"
)

// Session holds the per-session prefetch plus the chart payloads it was built
// from. Streaming turns read it; only the init call writes it.
type Session struct {
	SessionID    string         `json:"session_id"`
	SajuPayload  ChartPayload   `json:"saju_payload,omitempty"`
	AstroPayload ChartPayload   `json:"astro_payload,omitempty"`
	Theme        string         `json:"theme"`
	Locale       string         `json:"locale"`
	Prefetch     PrefetchResult `json:"prefetch"`
	CreatedAt    time.Time      `json:"created_at"`
}
