// Package gemini implements the Inference collaborator on Google's Gemini
// API. Each quality tier maps to a candidate model cascade; the first model
// that answers becomes sticky for that tier until it fails.
package gemini

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/socratic-mirror/coach/pkg/coach"
)

// Candidate cascades per tier, tried in order.
var (
	fastModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	deepModels = []string{"gemini-2.5-pro", "gemini-2.5-flash"}
)

// Provider calls the Gemini API.
type Provider struct {
	client *genai.Client

	mu        sync.Mutex
	preferred map[coach.QualityTier]string
}

// Option configures the provider.
type Option func(*Provider)

// New creates a Gemini provider for the given API key.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	p := &Provider{
		client:    client,
		preferred: make(map[coach.QualityTier]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate implements coach.Inference. Candidates are tried in order and the
// last error is returned when all fail.
func (p *Provider) Generate(ctx context.Context, prompt string, tier coach.QualityTier) (string, error) {
	config := p.generationConfig(tier)

	var lastErr error
	for _, model := range p.candidates(tier) {
		resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
		if err != nil {
			lastErr = err
			p.forget(tier, model)
			continue
		}
		text := resp.Text()
		if text == "" {
			lastErr = fmt.Errorf("model %s returned empty response", model)
			continue
		}
		p.remember(tier, model)
		return text, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate models for tier %s", tier)
	}
	return "", lastErr
}

// generationConfig tunes sampling per tier: fast turns run warmer for
// conversational variety, deep report passes run cooler.
func (p *Provider) generationConfig(tier coach.QualityTier) *genai.GenerateContentConfig {
	temperature := float32(0.7)
	if tier == coach.TierDeep {
		temperature = 0.4
	}
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		TopP:            genai.Ptr[float32](0.95),
		TopK:            genai.Ptr[float32](40),
		MaxOutputTokens: 2048,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
}

// candidates returns the tier cascade with the sticky preferred model first.
func (p *Provider) candidates(tier coach.QualityTier) []string {
	base := fastModels
	if tier == coach.TierDeep {
		base = deepModels
	}

	p.mu.Lock()
	preferred := p.preferred[tier]
	p.mu.Unlock()

	if preferred == "" || preferred == base[0] {
		return base
	}

	out := make([]string, 0, len(base)+1)
	out = append(out, preferred)
	for _, model := range base {
		if model != preferred {
			out = append(out, model)
		}
	}
	return out
}

func (p *Provider) remember(tier coach.QualityTier, model string) {
	p.mu.Lock()
	p.preferred[tier] = model
	p.mu.Unlock()
}

func (p *Provider) forget(tier coach.QualityTier, model string) {
	p.mu.Lock()
	if p.preferred[tier] == model {
		delete(p.preferred, tier)
	}
	p.mu.Unlock()
}
