package llm

// GenerateRequest contains the parameters for an LLM generation request.
type GenerateRequest struct {
	// Prompt is the current user prompt.
	Prompt string

	// Model is the model identifier (e.g. "claude-sonnet-4-20250514").
	Model string

	// History contains prior conversation turns, prepended before the
	// prompt. Empty for a fresh generation.
	History []Message

	// MaxTokens caps the number of output tokens. Zero means the adapter
	// applies the model's catalog ceiling.
	MaxTokens int

	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64

	// Betas lists beta capability flags required by extended-streaming
	// models (e.g. "output-128k-2025-02-19"). Only the Anthropic adapter
	// honors these.
	Betas []string
}

// Message represents a single turn in the conversation.
type Message struct {
	// Role is either "user" or "assistant"
	Role string

	// Content is the plain text of the turn
	Content string
}
