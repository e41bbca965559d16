package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// fakeStore serves canned hits for one collection and records search calls.
type fakeStore struct {
	mu         sync.Mutex
	collection string
	hits       []domain.SearchHit
	// hitsByLimit overrides hits for a specific topK, used to exercise the
	// widened backfill pass.
	hitsByLimit map[int][]domain.SearchHit
	err         error
	searches    []fakeSearch
}

type fakeSearch struct {
	topK     int
	minScore float64
	where    map[string]string
}

func (f *fakeStore) Collection() string { return f.collection }

func (f *fakeStore) HasData(context.Context) (bool, error) { return len(f.hits) > 0, f.err }

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.hits), f.err }

func (f *fakeStore) Upsert(context.Context, []domain.VectorRecord, [][]float32, int) error {
	return f.err
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int, minScore float64, where map[string]string) ([]domain.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, fakeSearch{topK: topK, minScore: minScore, where: where})
	if f.err != nil {
		return nil, f.err
	}
	if byLimit, ok := f.hitsByLimit[topK]; ok {
		return byLimit, nil
	}
	return f.hits, nil
}

func (f *fakeStore) Reset(context.Context) error { return f.err }

func (f *fakeStore) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

// fakeFactory hands out fakeStores by collection name.
type fakeFactory struct {
	stores map[string]*fakeStore
}

func newFakeFactory(stores ...*fakeStore) *fakeFactory {
	byName := make(map[string]*fakeStore, len(stores))
	for _, s := range stores {
		byName[s.collection] = s
	}
	return &fakeFactory{stores: byName}
}

func (f *fakeFactory) Store(collection string) (ports.VectorStore, error) {
	s, ok := f.stores[collection]
	if !ok {
		return nil, errors.New("unknown collection " + collection)
	}
	return s, nil
}

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

// fakeSessionCache is a plain map without TTL semantics.
type fakeSessionCache struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessionCache) Get(sessionID string) (*domain.Session, domain.SessionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		return s, domain.SessionReady
	}
	return nil, domain.SessionUnknown
}

func (f *fakeSessionCache) Put(session *domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.SessionID] = session
}

func (f *fakeSessionCache) Clear(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
}

// fakeConversationStore keeps turns in memory.
type fakeConversationStore struct {
	mu       sync.Mutex
	turns    map[string]int
	messages []domain.ConversationMessage
	err      error
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{turns: make(map[string]int)}
}

func (f *fakeConversationStore) NextUserTurn(_ context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.turns[sessionID]++
	return f.turns[sessionID], nil
}

func (f *fakeConversationStore) AppendMessage(_ context.Context, msg domain.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeConversationStore) ListRecentMessages(_ context.Context, sessionID string, limit int) ([]domain.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.ConversationMessage, 0, limit)
	for _, msg := range f.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// fakeChatModel scripts Complete responses and streams canned deltas.
type fakeChatModel struct {
	mu        sync.Mutex
	responses []string
	calls     int
	streamed  []string
	err       error
	requests  [][]ports.ChatMessage
}

func (f *fakeChatModel) Complete(_ context.Context, messages []ports.ChatMessage, _ ports.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, messages)
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.responses) {
		return "", errors.New("no scripted response")
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, messages []ports.ChatMessage, opts ports.ChatOptions, fn func(string) error) error {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	deltas := f.streamed
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, d := range deltas {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
