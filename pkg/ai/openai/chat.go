package openai

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/common"
	"github.com/storygraph/backend/pkg/logger"
)

const extractionTemperature = 0.1

// ExtractMentions asks the chat model for the actors a document mentions.
// The model's JSON output is parsed leniently; a credential rejection comes
// back wrapped in ai.ErrCredentialInvalid.
func (c *NewsOpenAIClient) ExtractMentions(ctx context.Context, text string) ([]common.Mention, error) {
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.extractionModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(ai.ExtractionPrompt, text)),
		},
		Temperature: openai.Float(extractionTemperature),
	}

	response, err := c.ChatClient.Chat.Completions.New(ctx, body)
	if err != nil {
		return nil, wrapCredentialError(err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	var parsed ai.MentionsResponse
	if err := ai.UnmarshalFlexible(response.Choices[0].Message.Content, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	mentions := parsed.ToMentions()
	logger.Debug("[AI] Extracted mentions", "count", len(mentions), "model", c.extractionModel)
	return mentions, nil
}
