package noop

import (
	"fmt"

	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// Factory is the disabled vector backend. Every Store call fails, which the
// retrieval layer treats as a degraded store: empty results, composition
// proceeds without retrieval context.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (*Factory) Store(collection string) (ports.VectorStore, error) {
	return nil, fmt.Errorf("vector backend disabled: no store for collection %q", collection)
}
