package ollama

import (
	"context"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/storygraph/backend/internal/util"
)

const defaultDimensions = 768

// GenerateEmbedding creates a vector embedding for the given input text on
// the configured embedding model. Empty input yields a zero vector.
func (c *NewsOllamaClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	dim := int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, dim), nil
	}

	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return make([]float32, dim), nil
	}
	return res.Embeddings[0], nil
}
