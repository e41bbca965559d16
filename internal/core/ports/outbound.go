package ports

import (
	"context"

	"github.com/junhyuk-dev/fortune-rag/internal/core/domain"
)

// Embedder builds unit-L2 vectors for indexed texts and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is a per-collection handle to the vector backend.
type VectorStore interface {
	Collection() string
	HasData(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
	Upsert(ctx context.Context, records []domain.VectorRecord, vectors [][]float32, batchSize int) error
	Search(ctx context.Context, queryVector []float32, topK int, minScore float64, where map[string]string) ([]domain.SearchHit, error)
	Reset(ctx context.Context) error
}

// VectorStoreFactory returns cached per-collection handles. Identical
// parameters yield the same instance; a different collection, base URL or
// embedding model id yields a distinct one.
type VectorStoreFactory interface {
	Store(collection string) (VectorStore, error)
}

// ChatMessage is one chat-completion message.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions selects model and sampling for one completion call.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
	JSONMode    bool
}

// ChatModel talks to the OpenAI-compatible chat-completion service.
// Stream delivers delta content strings to fn until the stream ends or fn
// returns an error; it is never retried in-band.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
	Stream(ctx context.Context, messages []ChatMessage, opts ChatOptions, fn func(delta string) error) error
}

// SessionCache holds per-session prefetch state between the init call and
// subsequent streaming turns. Not shared across processes.
type SessionCache interface {
	Get(sessionID string) (*domain.Session, domain.SessionState)
	Put(session *domain.Session)
	Clear(sessionID string)
}

// ConversationStore persists reading-conversation turns for the rolling
// context window.
type ConversationStore interface {
	NextUserTurn(ctx context.Context, sessionID string) (int, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.ConversationMessage, error)
}

// CardQueue publishes/consumes fusion-card sheet ingest events.
type CardQueue interface {
	PublishSheetIngest(ctx context.Context, sheetPath string) error
	SubscribeSheetIngest(ctx context.Context, handler func(context.Context, string) error) error
}

// SheetReader loads authored fusion cards and graph nodes from a spreadsheet.
type SheetReader interface {
	ReadFusionCards(path string) ([]domain.VectorRecord, error)
	ReadGraphNodes(path string) ([]domain.VectorRecord, error)
}
