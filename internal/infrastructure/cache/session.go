package cache

import (
	"sync"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// SessionCache is a process-local TTL map from session id to prefetched
// session state. Coarse lock; entries are small and turns are infrequent.
type SessionCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	session   *domain.Session
	expiresAt time.Time
}

func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Get returns the session and its lifecycle state. Expired entries are
// reaped lazily on read.
func (c *SessionCache) Get(sessionID string) (*domain.Session, domain.SessionState) {
	c.mu.RLock()
	e, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, domain.SessionUnknown
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, sessionID)
		c.mu.Unlock()
		return nil, domain.SessionExpired
	}
	return e.session, domain.SessionReady
}

func (c *SessionCache) Put(session *domain.Session) {
	if session == nil || session.SessionID == "" {
		return
	}
	c.mu.Lock()
	c.entries[session.SessionID] = &entry{
		session:   session,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

func (c *SessionCache) Clear(sessionID string) {
	c.mu.Lock()
	delete(c.entries, sessionID)
	c.mu.Unlock()
}
