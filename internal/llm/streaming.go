package llm

import "strings"

// Channel identifies which logical narrative a delta belongs to. Chat-style
// providers only ever emit ChannelText; reasoning-style providers interleave
// both.
type Channel string

const (
	// ChannelText carries final-answer text.
	ChannelText Channel = "text"

	// ChannelReasoning carries the model's reasoning narrative.
	ChannelReasoning Channel = "reasoning"
)

// StreamEvent represents a single event in a streaming response.
// Each event contains either a delta, metadata (completion), or an error.
type StreamEvent struct {
	// Delta contains an incremental text fragment (nil for metadata/error events)
	Delta *Delta

	// Metadata contains final response data when streaming completes (nil until end)
	Metadata *StreamMetadata

	// Error contains any error that occurred during streaming (nil if successful)
	Error error
}

// Delta is one incremental text fragment.
type Delta struct {
	// Channel indicates which narrative this fragment extends.
	Channel Channel

	// Text is the fragment content.
	Text string
}

// StreamMetadata contains completion information sent when streaming finishes.
// This is sent as the final event before the channel closes.
type StreamMetadata struct {
	// Model is the model that was used (may differ from request if aliased)
	Model string

	// InputTokens is the number of tokens in the input, when the provider
	// reports usage. Zero otherwise.
	InputTokens int

	// OutputTokens is the number of tokens in the output, when reported.
	OutputTokens int

	// StopReason indicates why generation stopped (e.g. "end_turn",
	// "max_tokens", "incomplete" when the transport closed early).
	StopReason string
}

// GenerateResponse contains a complete (non-streaming) provider response.
type GenerateResponse struct {
	// Text is the full response text.
	Text string

	// Reasoning is the reasoning narrative, when the provider produced one.
	Reasoning string

	// Model is the model that was used.
	Model string

	// InputTokens and OutputTokens carry provider-reported usage when available.
	InputTokens  int
	OutputTokens int

	// StopReason indicates why generation stopped.
	StopReason string
}

const (
	reasoningHeading = "## Reasoning"
	answerHeading    = "## Answer"
	sectionDelimiter = "\n\n---\n\n"
)

// ComposeReasoningDocument joins a reasoning narrative and a final answer
// into a single readable document: reasoning first, answer second, separated
// by a visible delimiter. Either part may be empty.
func ComposeReasoningDocument(reasoning, answer string) string {
	reasoning = strings.TrimSpace(reasoning)
	answer = strings.TrimSpace(answer)

	switch {
	case reasoning != "" && answer != "":
		return reasoningHeading + "\n\n" + reasoning + sectionDelimiter + answerHeading + "\n\n" + answer
	case reasoning != "":
		return reasoningHeading + "\n\n" + reasoning
	default:
		return answer
	}
}
