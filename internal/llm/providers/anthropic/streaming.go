package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Stream produces a streaming response from Claude.
// Returns a channel that emits StreamEvent as deltas arrive from the API.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerateRequest) (<-chan llm.StreamEvent, error) {
	apiParams := buildMessageParams(req)

	eventChan := make(chan llm.StreamEvent, 10) // Buffered to prevent blocking

	go func() {
		defer close(eventChan)

		stream := p.client.Messages.NewStreaming(ctx, apiParams, requestOptions(req)...)

		// Accumulator for final message metadata
		message := anthropic.Message{}

		for stream.Next() {
			event := stream.Current()

			if err := message.Accumulate(event); err != nil {
				eventChan <- llm.StreamEvent{
					Error: classifyError(err),
				}
				return
			}

			delta := transformStreamEvent(event)
			if delta == nil {
				continue
			}

			select {
			case <-ctx.Done():
				eventChan <- llm.StreamEvent{Error: ctx.Err()}
				return
			case eventChan <- llm.StreamEvent{Delta: delta}:
			}
		}

		if err := stream.Err(); err != nil {
			eventChan <- llm.StreamEvent{Error: classifyError(err)}
			return
		}

		eventChan <- llm.StreamEvent{
			Metadata: &llm.StreamMetadata{
				Model:        string(message.Model),
				InputTokens:  int(message.Usage.InputTokens),
				OutputTokens: int(message.Usage.OutputTokens),
				StopReason:   string(message.StopReason),
			},
		}
	}()

	return eventChan, nil
}

// transformStreamEvent converts an Anthropic streaming event to a library
// delta. Only content_block_delta events carry text; message bookkeeping
// events (message_start, content_block_start/stop, message_delta,
// message_stop) are folded into the accumulated metadata instead.
func transformStreamEvent(event anthropic.MessageStreamEventUnion) *llm.Delta {
	e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
	if !ok {
		return nil
	}

	switch e.Delta.Type {
	case "text_delta":
		if e.Delta.Text == "" {
			return nil
		}
		return &llm.Delta{Channel: llm.ChannelText, Text: e.Delta.Text}

	case "thinking_delta":
		if e.Delta.Thinking == "" {
			return nil
		}
		return &llm.Delta{Channel: llm.ChannelReasoning, Text: e.Delta.Thinking}

	default:
		// signature_delta, input_json_delta: no visible text
		return nil
	}
}
