package qdrant

import (
	"fmt"
	"sync"

	"github.com/junhyuk-dev/fortune-rag/internal/core/ports"
)

// Factory caches one Store per (collection, base URL, embedding model id).
// Mixing two embedding models against one collection is a configuration
// error, so the model id is part of the cache key.
type Factory struct {
	baseURL string
	modelID string
	options Options

	mu     sync.Mutex
	stores map[string]*Store
}

func NewFactory(baseURL, modelID string) *Factory {
	return NewFactoryWithOptions(baseURL, modelID, Options{})
}

func NewFactoryWithOptions(baseURL, modelID string, options Options) *Factory {
	return &Factory{
		baseURL: baseURL,
		modelID: modelID,
		options: options,
		stores:  make(map[string]*Store),
	}
}

func (f *Factory) Store(collection string) (ports.VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	key := collection + "|" + f.baseURL + "|" + f.modelID
	f.mu.Lock()
	defer f.mu.Unlock()
	if store, ok := f.stores[key]; ok {
		return store, nil
	}
	store := NewStoreWithOptions(f.baseURL, collection, f.options)
	f.stores[key] = store
	return store, nil
}
