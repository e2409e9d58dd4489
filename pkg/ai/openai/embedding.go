package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"github.com/storygraph/backend/internal/util"
)

const defaultDimensions = 1536

// GenerateEmbedding creates a vector embedding for the given input text.
// Empty input yields a zero vector of the configured dimension instead of a
// model call.
func (c *NewsOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	dim := int(util.GetEnvNumeric("AI_EMBED_DIM", defaultDimensions))
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, dim), nil
	}

	response, err := c.EmbeddingClient.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{string(input)},
		},
		Dimensions: openai.Int(int64(dim)),
	})
	if err != nil {
		return nil, wrapCredentialError(err)
	}
	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	out := make([]float32, len(response.Data[0].Embedding))
	for i, v := range response.Data[0].Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
