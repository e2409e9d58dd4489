package ollama

import (
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// NewsOllamaClient implements ai.NewsAIClient against a locally hosted
// Ollama server. Requests are throttled through a weighted semaphore so a
// batch extraction run cannot flood the server.
type NewsOllamaClient struct {
	extractionModel string
	embeddingModel  string

	reqLock *semaphore.Weighted

	Client *api.Client
}

// NewNewsOllamaClientParams configures a NewsOllamaClient.
type NewNewsOllamaClientParams struct {
	ExtractionModel string
	EmbeddingModel  string

	BaseURL string
	APIKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

func NewNewsOllamaClient(params NewNewsOllamaClientParams) (*NewsOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)
	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.APIKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{"Authorization": "Bearer " + params.APIKey},
				rt:      http.DefaultTransport,
			},
		}
	}

	concurrency := params.MaxConcurrentRequests
	if concurrency <= 0 {
		concurrency = 1
	}

	return &NewsOllamaClient{
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,
		reqLock:         semaphore.NewWeighted(concurrency),
		Client:          api.NewClient(u, httpClient),
	}, nil
}
