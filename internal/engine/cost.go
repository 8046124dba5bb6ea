package engine

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/pricing.yaml
var embeddedPricing []byte

// ModelPricing holds the per-model API rates in USD per million tokens.
type ModelPricing struct {
	Name          string  `yaml:"name" json:"model_name"`
	Provider      string  `yaml:"provider" json:"provider"`
	InputCost     float64 `yaml:"input_cost" json:"input_cost"`
	OutputCost    float64 `yaml:"output_cost" json:"output_cost"`
	ContextWindow int     `yaml:"context_window" json:"context_window"`
}

type pricingFile struct {
	Models map[string]ModelPricing `yaml:"models"`
}

var (
	pricingOnce  sync.Once
	pricingTable map[string]ModelPricing
)

func loadPricing() map[string]ModelPricing {
	pricingOnce.Do(func() {
		var pf pricingFile
		if err := yaml.Unmarshal(embeddedPricing, &pf); err != nil {
			panic(fmt.Sprintf("engine: invalid embedded pricing table: %v", err))
		}
		pricingTable = pf.Models
	})
	return pricingTable
}

// Pricing returns the rate card for a model and whether one exists.
func Pricing(model string) (ModelPricing, bool) {
	p, ok := loadPricing()[model]
	return p, ok
}

// PricingTable returns a copy of the full rate card keyed by model ID.
func PricingTable() map[string]ModelPricing {
	src := loadPricing()
	out := make(map[string]ModelPricing, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// costTokens estimates billable tokens from a word count. One token covers
// roughly 0.75 words of English text.
func costTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Max(1, float64(int(float64(words)/0.75))))
}

// trackCost writes the usage accounting entry for a finished generation.
// Unknown models are skipped with a warning; accounting failures never
// affect the generation itself.
func (s *Service) trackCost(ctx context.Context, gen *Generation) {
	pricing, ok := Pricing(gen.Model)
	if !ok {
		slog.Warn("no pricing for model, skipping cost record", "model", gen.Model)
		return
	}

	inputTokens := costTokens(gen.Prompt)
	outputTokens := costTokens(gen.Response)

	inputCost := (float64(inputTokens) / 1_000_000) * pricing.InputCost
	outputCost := (float64(outputTokens) / 1_000_000) * pricing.OutputCost

	rec := &CostRecord{
		GenerationID: gen.ID,
		Model:        gen.Model,
		Provider:     pricing.Provider,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.SaveCost(ctx, rec); err != nil {
		slog.Error("failed to save cost record", "generation_id", gen.ID, "error", err)
		return
	}
	slog.Info("cost recorded", "generation_id", gen.ID, "total_cost", rec.TotalCost)
}
