// Package llm defines the uniform provider abstraction the generation
// engine dispatches through. Each backend family (Anthropic, OpenAI-format
// chat completions, reasoning-event streaming, simulation) implements
// Provider behind this boundary; provider-specific wire formats never leak
// past it.
package llm

import (
	"context"
)

// Provider is the interface every LLM backend adapter implements.
//
// Types used by this interface:
//   - GenerateRequest, Message: defined in request.go
//   - GenerateResponse, StreamEvent: defined in streaming.go
type Provider interface {
	// Generate produces a complete response (blocking). Used for
	// non-streaming requests and as the reasoning fallback path.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Stream produces an incremental response. It returns a channel that
	// emits StreamEvent values as they arrive; the channel is closed when
	// streaming completes or fails.
	//
	// Usage:
	//   events, err := provider.Stream(ctx, req)
	//   if err != nil { return err }
	//   for ev := range events {
	//     if ev.Error != nil { handle error }
	//     if ev.Delta != nil { process delta }
	//     if ev.Metadata != nil { streaming complete }
	//   }
	Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)

	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() ProviderID
}

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderAnthropic is Anthropic's Claude API (chat and extended/beta
	// streaming classes).
	ProviderAnthropic ProviderID = "anthropic"

	// ProviderOpenAI is OpenAI's chat-completions API.
	ProviderOpenAI ProviderID = "openai"

	// ProviderXAI is xAI's Grok API (OpenAI-compatible chat completions).
	ProviderXAI ProviderID = "xai"

	// ProviderReasoning is the reasoning-event streaming family (OpenAI
	// O-series models over the responses API).
	ProviderReasoning ProviderID = "openai-reasoning"

	// ProviderSim is the synthetic simulation provider used when no
	// credential is configured for the requested family.
	ProviderSim ProviderID = "sim"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderAnthropic, ProviderOpenAI, ProviderXAI, ProviderReasoning, ProviderSim:
		return true
	default:
		return false
	}
}
