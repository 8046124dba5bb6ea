// Package anthropic implements the llm.Provider interface for Anthropic
// (Claude) models. It covers both the standard chat streaming class and the
// extended/beta class, which opts into beta capability flags and a larger
// output-token ceiling.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/promptdeck/promptdeck/internal/llm"
)

const defaultMaxTokens = 4096

// Provider implements the llm.Provider interface for Anthropic models.
type Provider struct {
	client *anthropic.Client
}

// New creates a new Anthropic provider with the given API key.
func New(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, llm.ErrInvalidAPIKey
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &Provider{
		client: &client,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llm.ProviderID {
	return llm.ProviderAnthropic
}

// Generate produces a complete response from Claude (blocking).
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	apiParams := buildMessageParams(req)

	message, err := p.client.Messages.New(ctx, apiParams, requestOptions(req)...)
	if err != nil {
		return nil, classifyError(err)
	}

	var text strings.Builder
	for _, content := range message.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}

	return &llm.GenerateResponse{
		Text:         text.String(),
		Model:        string(message.Model),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		StopReason:   string(message.StopReason),
	}, nil
}

// buildMessageParams constructs Anthropic API parameters from a
// GenerateRequest. Shared between Generate and Stream.
func buildMessageParams(req *llm.GenerateRequest) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, turn := range req.History {
		block := anthropic.NewTextBlock(turn.Content)
		if turn.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if req.Temperature != 0 {
		apiParams.Temperature = anthropic.Float(req.Temperature)
	}

	return apiParams
}

// requestOptions returns per-request options. Extended-class models carry
// beta capability flags, sent as the anthropic-beta header.
func requestOptions(req *llm.GenerateRequest) []option.RequestOption {
	if len(req.Betas) == 0 {
		return nil
	}
	return []option.RequestOption{
		option.WithHeader("anthropic-beta", strings.Join(req.Betas, ",")),
	}
}

// classifyError maps SDK errors onto the library taxonomy so the engine can
// produce targeted user-facing messages.
func classifyError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return fmt.Errorf("anthropic authentication failed: %w", llm.ErrInvalidAPIKey)
		case 404:
			return &llm.ModelError{
				Provider: llm.ProviderAnthropic.String(),
				Reason:   "model not found",
				Err:      llm.ErrInvalidModel,
			}
		case 429:
			return &llm.ProviderError{
				Provider:   llm.ProviderAnthropic.String(),
				StatusCode: apierr.StatusCode,
				Message:    "rate limit exceeded",
				Retryable:  true,
				Err:        llm.ErrRateLimited,
			}
		}
	}
	return fmt.Errorf("anthropic API call failed: %w", err)
}
