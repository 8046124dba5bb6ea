// Package sim implements a simulated llm.Provider for development and
// demos. It requires no credentials and produces deterministic-shaped lorem
// ipsum output, clearly labeled so it cannot be mistaken for a real model.
package sim

import (
	"context"
	"fmt"
	"strings"

	lorem "github.com/bozaro/golorem"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Provider implements the llm.Provider interface with generated filler text.
type Provider struct {
	generator *lorem.Lorem
}

// New creates a simulation provider.
func New() *Provider {
	return &Provider{generator: lorem.New()}
}

// Name returns the provider identifier.
func (p *Provider) Name() llm.ProviderID {
	return llm.ProviderSim
}

func (p *Provider) simulatedText(req *llm.GenerateRequest) string {
	prompt := req.Prompt
	if len(prompt) > 100 {
		prompt = prompt[:100]
	}
	return fmt.Sprintf("Simulated response for model %s. Prompt received: %s...\n\n%s",
		req.Model, prompt, p.generator.Paragraph(3, 5))
}

// Generate returns a labeled simulated response immediately.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	text := p.simulatedText(req)
	return &llm.GenerateResponse{
		Text:       text,
		Model:      req.Model,
		StopReason: "end_turn",
	}, nil
}

// Stream emits the simulated response word by word.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamEvent, error) {
	text := p.simulatedText(req)
	words := strings.Fields(text)

	eventChan := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(eventChan)

		for i, word := range words {
			chunk := word
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case <-ctx.Done():
				return
			case eventChan <- llm.StreamEvent{
				Delta: &llm.Delta{Channel: llm.ChannelText, Text: chunk},
			}:
			}
		}

		eventChan <- llm.StreamEvent{
			Metadata: &llm.StreamMetadata{
				Model:      req.Model,
				StopReason: "end_turn",
			},
		}
	}()

	return eventChan, nil
}
