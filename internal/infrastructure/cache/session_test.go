package cache

import (
	"testing"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

func TestSessionCacheLifecycle(t *testing.T) {
	c := NewSessionCache(time.Hour)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	if _, state := c.Get("s1"); state != domain.SessionUnknown {
		t.Fatalf("expected unknown state, got %s", state)
	}

	c.Put(&domain.Session{SessionID: "s1", Theme: "love"})
	got, state := c.Get("s1")
	if state != domain.SessionReady {
		t.Fatalf("expected ready state, got %s", state)
	}
	if got.Theme != "love" {
		t.Fatalf("expected stored session, got %+v", got)
	}

	now = now.Add(2 * time.Hour)
	if _, state := c.Get("s1"); state != domain.SessionExpired {
		t.Fatalf("expected expired state, got %s", state)
	}

	// Expired entry is reaped; a later read is a plain miss.
	if _, state := c.Get("s1"); state != domain.SessionUnknown {
		t.Fatalf("expected unknown after reap, got %s", state)
	}
}

func TestSessionCacheClear(t *testing.T) {
	c := NewSessionCache(time.Hour)
	c.Put(&domain.Session{SessionID: "s2"})
	c.Clear("s2")
	if _, state := c.Get("s2"); state != domain.SessionUnknown {
		t.Fatalf("expected unknown after clear, got %s", state)
	}
}
