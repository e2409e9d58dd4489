package extract

import (
	"context"

	"github.com/storygraph/backend/pkg/ai"
	"github.com/storygraph/backend/pkg/common"
)

// ErrCredentialInvalid is returned by an extraction collaborator whose
// credential was rejected. The orchestrator stops calling the collaborator
// for the remainder of the run but keeps processing documents.
var ErrCredentialInvalid = ai.ErrCredentialInvalid

// MentionExtractor produces candidate actor mentions from raw document text.
type MentionExtractor interface {
	ExtractMentions(ctx context.Context, text string) ([]common.Mention, error)
}
