package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"
)

const extractionTemperature = 0.1

// ExtractMentions asks the extraction model for the actors a document
// mentions and parses its JSON output leniently.
func (c *NewsOllamaClient) ExtractMentions(ctx context.Context, text string) ([]common.Mention, error) {
	if err := c.reqLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	stream := false
	req := &api.ChatRequest{
		Model: c.extractionModel,
		Messages: []api.Message{
			{Role: "user", Content: fmt.Sprintf(ai.ExtractionPrompt, text)},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": extractionTemperature},
	}

	var content string
	err := c.Client.Chat(ctx, req, func(cr api.ChatResponse) error {
		content += cr.Message.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	var parsed ai.MentionsResponse
	if err := ai.UnmarshalFlexible(content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	mentions := parsed.ToMentions()
	logger.Debug("[AI] Extracted mentions", "count", len(mentions), "model", c.extractionModel)
	return mentions, nil
}
