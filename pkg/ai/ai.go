package ai

import (
	"context"
	"errors"

	"github.com/storygraph/backend/pkg/common"
)

// ErrCredentialInvalid signals a rejected API credential. Batch callers stop
// using the client for the rest of their run instead of aborting.
var ErrCredentialInvalid = errors.New("ai credential invalid")

// NewsAIClient is the model-backed collaborator the extraction pipeline
// consumes: candidate mention extraction from document text and embedding
// generation. Implementations exist for OpenAI-compatible APIs and Ollama.
type NewsAIClient interface {
	ExtractMentions(ctx context.Context, text string) ([]common.Mention, error)
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// MentionsResponse is the JSON shape the extraction prompt asks models for.
type MentionsResponse struct {
	Mentions []MentionPayload `json:"mentions"`
}

// MentionPayload is one extracted mention as the model reports it.
type MentionPayload struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Confidence   float64 `json:"confidence"`
	OriginalText string  `json:"original_text,omitempty"`
	Language     string  `json:"language,omitempty"`
}

// ToMentions converts the wire payload into domain mentions, dropping
// entries without a name and clamping confidence into [0,1].
func (r *MentionsResponse) ToMentions() []common.Mention {
	mentions := make([]common.Mention, 0, len(r.Mentions))
	for _, m := range r.Mentions {
		if m.Name == "" {
			continue
		}
		confidence := m.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		mentions = append(mentions, common.Mention{
			Name:         m.Name,
			Type:         common.ActorType(m.Type),
			Confidence:   confidence,
			OriginalText: m.OriginalText,
			Language:     m.Language,
		})
	}
	return mentions
}
