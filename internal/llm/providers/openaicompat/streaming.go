package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// chatCompletionChunk represents one streaming chunk.
type chatCompletionChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"` // "chat.completion.chunk"
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role    *string `json:"role,omitempty"`
			Content *string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream produces a streaming response over SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamEvent, error) {
	httpReq, err := p.buildHTTPRequest(ctx, "/chat/completions", buildChatRequest(req, true))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s HTTP request failed: %w", p.id, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.handleErrorResponse(resp)
	}

	eventChan := make(chan llm.StreamEvent, 10) // Buffered to prevent blocking

	go func() {
		defer close(eventChan)
		defer resp.Body.Close()

		if err := p.streamEvents(ctx, resp.Body, eventChan); err != nil {
			eventChan <- llm.StreamEvent{Error: err}
		}
	}()

	return eventChan, nil
}

// streamEvents reads SSE data lines and emits library StreamEvents.
func (p *Provider) streamEvents(ctx context.Context, body io.ReadCloser, eventChan chan<- llm.StreamEvent) error {
	scanner := bufio.NewScanner(body)

	var model string
	var stopReason string

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			break
		}

		// Some backends report mid-stream failures as an inline error
		// payload instead of closing the connection.
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(data), &errResp) == nil && errResp.Error.Message != "" {
			return &llm.ProviderError{
				Provider: p.id.String(),
				Message:  errResp.Error.Message,
				Err:      llm.ErrProviderUnavailable,
			}
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Ignore unparseable chunks (keep-alives and the like)
			continue
		}

		if chunk.Model != "" {
			model = chunk.Model
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]

		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case eventChan <- llm.StreamEvent{
				Delta: &llm.Delta{Channel: llm.ChannelText, Text: *choice.Delta.Content},
			}:
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			stopReason = *choice.FinishReason
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}

	eventChan <- llm.StreamEvent{
		Metadata: &llm.StreamMetadata{
			Model:      model,
			StopReason: stopReason,
		},
	}

	return nil
}
