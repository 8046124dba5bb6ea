// Package reasoning implements the llm.Provider interface for reasoning
// models served over the OpenAI responses API. These models stream typed
// events on two interleaved logical channels - a reasoning narrative and the
// final answer - rather than plain text deltas.
package reasoning

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Event types emitted by the responses API stream.
const (
	eventReasoningDelta = "response.reasoning_summary_text.delta"
	eventOutputDelta    = "response.output_text.delta"
	eventCompleted      = "response.completed"
	eventFailed         = "response.failed"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider implements the llm.Provider interface for O-series reasoning models.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a reasoning provider. Reasoning models share the OpenAI
// credential but use a different API surface and streaming protocol.
func New(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, llm.ErrInvalidAPIKey
	}

	return &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llm.ProviderID {
	return llm.ProviderReasoning
}

// responsesRequest is the request body for /responses.
type responsesRequest struct {
	Model     string          `json:"model"`
	Input     []responseInput `json:"input"`
	Text      responseText    `json:"text"`
	Reasoning responseEffort  `json:"reasoning"`
	Tools     []any           `json:"tools"`
	Store     bool            `json:"store"`
	Stream    bool            `json:"stream"`
}

type responseInput struct {
	Role    string            `json:"role"`
	Content []responseContent `json:"content"`
}

type responseContent struct {
	Type string `json:"type"` // "input_text"
	Text string `json:"text"`
}

type responseText struct {
	Format responseFormat `json:"format"`
}

type responseFormat struct {
	Type string `json:"type"` // "text"
}

type responseEffort struct {
	Effort  string `json:"effort"`
	Summary string `json:"summary"`
}

func buildResponsesRequest(req *llm.GenerateRequest) *responsesRequest {
	input := make([]responseInput, 0, len(req.History)+1)
	for _, turn := range req.History {
		input = append(input, responseInput{
			Role:    turn.Role,
			Content: []responseContent{{Type: "input_text", Text: turn.Content}},
		})
	}
	input = append(input, responseInput{
		Role:    "user",
		Content: []responseContent{{Type: "input_text", Text: req.Prompt}},
	})

	return &responsesRequest{
		Model:     req.Model,
		Input:     input,
		Text:      responseText{Format: responseFormat{Type: "text"}},
		Reasoning: responseEffort{Effort: "medium", Summary: "auto"},
		Tools:     []any{},
		Store:     true,
		Stream:    true,
	}
}

// Generate produces a complete response by consuming the event stream and
// composing the reasoning document.
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	events, err := p.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var reasoning, answer strings.Builder
	meta := &llm.StreamMetadata{Model: req.Model}

	for ev := range events {
		switch {
		case ev.Error != nil:
			return nil, ev.Error
		case ev.Delta != nil:
			if ev.Delta.Channel == llm.ChannelReasoning {
				reasoning.WriteString(ev.Delta.Text)
			} else {
				answer.WriteString(ev.Delta.Text)
			}
		case ev.Metadata != nil:
			meta = ev.Metadata
		}
	}

	return &llm.GenerateResponse{
		Text:         answer.String(),
		Reasoning:    reasoning.String(),
		Model:        meta.Model,
		InputTokens:  meta.InputTokens,
		OutputTokens: meta.OutputTokens,
		StopReason:   meta.StopReason,
	}, nil
}

// Stream produces the typed event stream.
//
// The `completed` event is the sole authoritative end-of-stream signal. If
// the transport closes without one, the stream still finalizes with whatever
// was accumulated (StopReason "incomplete") - it never hangs.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamEvent, error) {
	body, err := json.Marshal(buildResponsesRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reasoning HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp)
	}

	eventChan := make(chan llm.StreamEvent, 10)

	go func() {
		defer close(eventChan)
		defer resp.Body.Close()

		if err := p.streamEvents(ctx, resp.Body, eventChan); err != nil {
			eventChan <- llm.StreamEvent{Error: err}
		}
	}()

	return eventChan, nil
}

// streamedEvent is the data payload of one SSE event. The payload carries
// its own type discriminator, mirroring the event: line.
type streamedEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Response struct {
		Model string `json:"model"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"response"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) streamEvents(ctx context.Context, body io.ReadCloser, eventChan chan<- llm.StreamEvent) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev streamedEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case eventReasoningDelta:
			if ev.Delta == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case eventChan <- llm.StreamEvent{
				Delta: &llm.Delta{Channel: llm.ChannelReasoning, Text: ev.Delta},
			}:
			}

		case eventOutputDelta:
			if ev.Delta == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case eventChan <- llm.StreamEvent{
				Delta: &llm.Delta{Channel: llm.ChannelText, Text: ev.Delta},
			}:
			}

		case eventCompleted:
			eventChan <- llm.StreamEvent{
				Metadata: &llm.StreamMetadata{
					Model:        ev.Response.Model,
					InputTokens:  ev.Response.Usage.InputTokens,
					OutputTokens: ev.Response.Usage.OutputTokens,
					StopReason:   "completed",
				},
			}
			return nil

		case eventFailed:
			return &llm.ProviderError{
				Provider: llm.ProviderReasoning.String(),
				Message:  ev.Error.Message,
				Err:      llm.ErrProviderUnavailable,
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}

	// Transport closed without a completed event. Finalize with what we
	// have rather than surfacing an error or hanging.
	eventChan <- llm.StreamEvent{
		Metadata: &llm.StreamMetadata{StopReason: "incomplete"},
	}
	return nil
}

func (p *Provider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
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
		return fmt.Errorf("reasoning authentication failed: %s: %w", message, llm.ErrInvalidAPIKey)
	case 404:
		return &llm.ModelError{
			Provider: llm.ProviderReasoning.String(),
			Reason:   "model not found: " + message,
			Err:      llm.ErrInvalidModel,
		}
	default:
		return &llm.ProviderError{
			Provider:   llm.ProviderReasoning.String(),
			StatusCode: resp.StatusCode,
			Message:    message,
			Retryable:  resp.StatusCode >= 500,
			Err:        llm.ErrProviderUnavailable,
		}
	}
}
