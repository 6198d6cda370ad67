package coach

import "context"

// QualityTier selects how much model effort a call deserves. Retry and model
// selection policy is private to the provider; the orchestration core only
// expresses intent.
type QualityTier string

const (
	// TierFast is for in-conversation turns: question generation, evaluation.
	TierFast QualityTier = "fast"
	// TierDeep is for post-hoc analysis: report scoring.
	TierDeep QualityTier = "deep"
)

// Inference is the consumed model collaborator. It may fail or return
// non-JSON text at any time; callers push results through the normalizer and
// fall back to canned responses, never propagating failures to the transport.
type Inference interface {
	Generate(ctx context.Context, prompt string, tier QualityTier) (string, error)
}

// InferenceFunc adapts a function to the Inference interface.
type InferenceFunc func(ctx context.Context, prompt string, tier QualityTier) (string, error)

func (f InferenceFunc) Generate(ctx context.Context, prompt string, tier QualityTier) (string, error) {
	return f(ctx, prompt, tier)
}
