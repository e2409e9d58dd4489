package openai

import (
	"errors"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/storygraph/backend/pkg/ai"
)

// NewsOpenAIClient implements ai.NewsAIClient against OpenAI-compatible
// APIs. Extraction and embedding may target different endpoints, which
// allows mixing a hosted chat model with a local embedding server.
type NewsOpenAIClient struct {
	extractionModel string
	embeddingModel  string

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewNewsOpenAIClientParams configures a NewsOpenAIClient. Empty URLs fall
// back to the official API endpoint.
type NewNewsOpenAIClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string
}

func NewNewsOpenAIClient(params NewNewsOpenAIClientParams) *NewsOpenAIClient {
	return &NewsOpenAIClient{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,
		ChatClient:      newClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newClient(baseURL, key string) *openai.Client {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	client := openai.NewClient(opts...)
	return &client
}

// wrapCredentialError maps auth rejections onto the distinguished sentinel
// so batch callers can stop using the client for the rest of a run.
func wrapCredentialError(err error) error {
	if err == nil {
		return nil
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusUnauthorized || apierr.StatusCode == http.StatusForbidden {
			return errors.Join(ai.ErrCredentialInvalid, err)
		}
	}
	return err
}
