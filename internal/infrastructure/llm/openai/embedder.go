package openai

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/junhyuk-dev/fortune-rag/internal/infrastructure/resilience"
)

// Embedder produces unit-L2 vectors through the shared client. Bootstrap
// constructs exactly one instance; every retrieval worker holds the same one.
type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// NewEmbedderWithExecutor routes embedding calls through the resilience
// executor: one retry on transient failures, shared breaker per operation.
func NewEmbedderWithExecutor(client *Client, executor *resilience.Executor) *Embedder {
	return &Embedder{client: client, executor: executor}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	call := func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          texts,
			Model:          openai.EmbeddingModel(e.client.embedModel),
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return wrapEmbeddingError(err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(resp.Data))
		}
		out = make([][]float32, len(resp.Data))
		for _, item := range resp.Data {
			out[item.Index] = normalizeL2(item.Embedding)
		}
		return nil
	}

	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "openai.embed", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return vectors[0], nil
}

func normalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
