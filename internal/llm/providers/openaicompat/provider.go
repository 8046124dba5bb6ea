// Package openaicompat implements the llm.Provider interface for
// OpenAI-format chat-completion APIs. Both the OpenAI and xAI families speak
// this wire format; the two differ only in base URL and credential, so one
// adapter serves both.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Base URLs for the two families served by this adapter.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	XAIBaseURL    = "https://api.x.ai/v1"
)

// Provider implements the llm.Provider interface over an OpenAI-compatible
// chat-completions endpoint.
type Provider struct {
	id         llm.ProviderID
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a provider for the given family. id selects the reported
// provider name; baseURL selects the endpoint.
func New(id llm.ProviderID, apiKey, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, llm.ErrInvalidAPIKey
	}

	return &Provider{
		id:         id,
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewOpenAI creates a provider for the OpenAI family.
func NewOpenAI(apiKey string) (*Provider, error) {
	return New(llm.ProviderOpenAI, apiKey, OpenAIBaseURL)
}

// NewXAI creates a provider for the xAI (Grok) family.
func NewXAI(apiKey string) (*Provider, error) {
	return New(llm.ProviderXAI, apiKey, XAIBaseURL)
}

// Name returns the provider identifier.
func (p *Provider) Name() llm.ProviderID {
	return p.id
}

// chatMessage is one turn in the OpenAI chat-completions format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the request body for /chat/completions.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatCompletionResponse is the non-streaming response body.
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func buildChatRequest(req *llm.GenerateRequest, stream bool) *chatCompletionRequest {
	messages := make([]chatMessage, 0, len(req.History)+1)
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	return &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

// Generate produces a complete (non-streaming) response.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	httpReq, err := p.buildHTTPRequest(ctx, "/chat/completions", buildChatRequest(req, false))
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s HTTP request failed: %w", p.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.handleErrorResponse(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, &llm.ProviderError{
			Provider: p.id.String(),
			Message:  "response contained no choices",
			Err:      llm.ErrProviderUnavailable,
		}
	}

	return &llm.GenerateResponse{
		Text:         chatResp.Choices[0].Message.Content,
		Model:        chatResp.Model,
		InputTokens:  chatResp.Usage.PromptTokens,
		OutputTokens: chatResp.Usage.CompletionTokens,
		StopReason:   chatResp.Choices[0].FinishReason,
	}, nil
}

// buildHTTPRequest creates a JSON POST request against the configured API.
func (p *Provider) buildHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	return httpReq, nil
}

// handleErrorResponse parses error responses into the library taxonomy.
func (p *Provider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	message := ""
	if err := json.Unmarshal(body, &errResp); err == nil {
		message = errResp.Error.Message
	}
	if message == "" {
		message = string(body)
	}

	switch resp.StatusCode {
	case 401, 403:
		return fmt.Errorf("%s authentication failed: %s: %w", p.id, message, llm.ErrInvalidAPIKey)
	case 404:
		return &llm.ModelError{
			Provider: p.id.String(),
			Reason:   "model not found: " + message,
			Err:      llm.ErrInvalidModel,
		}
	case 429:
		return &llm.ProviderError{
			Provider:   p.id.String(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  true,
			Err:        llm.ErrRateLimited,
		}
	default:
		return &llm.ProviderError{
			Provider:   p.id.String(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  resp.StatusCode >= 500,
			Err:        llm.ErrProviderUnavailable,
		}
	}
}
