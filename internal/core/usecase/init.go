package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// InitializerOptions controls payload admission.
type InitializerOptions struct {
	RequirePayload bool
	AllowBirthOnly bool
}

// Initializer runs the heavy per-session prefetch once and caches the result
// for subsequent streaming turns.
type Initializer struct {
	prefetcher ports.Prefetcher
	cache      ports.SessionCache
	opts       InitializerOptions
	logger     *slog.Logger
	now        func() time.Time
}

func NewInitializer(prefetcher ports.Prefetcher, cache ports.SessionCache, opts InitializerOptions, logger *slog.Logger) *Initializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initializer{
		prefetcher: prefetcher,
		cache:      cache,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Init validates the request, runs the prefetch and stores the ready session.
func (s *Initializer) Init(ctx context.Context, req domain.ReadingRequest) (*domain.Session, error) {
	if req.SessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "session init", fmt.Errorf("session id required"))
	}

	hasPayload := len(req.SajuPayload) > 0 || len(req.AstroPayload) > 0
	if !hasPayload && s.opts.RequirePayload && !s.opts.AllowBirthOnly {
		return nil, domain.WrapError(domain.ErrPayloadMissing, "session init", fmt.Errorf("computed chart payload required"))
	}

	started := s.now()
	prefetch := s.prefetcher.Prefetch(ctx, req.SajuPayload, req.AstroPayload, req.Theme, req.Locale)

	session := &domain.Session{
		SessionID:    req.SessionID,
		SajuPayload:  req.SajuPayload,
		AstroPayload: req.AstroPayload,
		Theme:        req.Theme,
		Locale:       req.Locale,
		Prefetch:     prefetch,
		CreatedAt:    started,
	}
	s.cache.Put(session)

	s.logger.Info("session initialized",
		slog.String("session_id", req.SessionID),
		slog.String("theme", req.Theme),
		slog.Int("cross_groups", len(prefetch.CrossGroups)),
		slog.Int64("prefetch_time_ms", prefetch.PrefetchTimeMS))
	return session, nil
}
