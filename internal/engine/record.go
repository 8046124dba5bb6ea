// Package engine implements the generation lifecycle: accepting prompts,
// dispatching them to providers, persisting streamed chunks, and accounting
// for token usage and cost.
package engine

import "time"

// Status is the lifecycle state of a generation.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusGenerating Status = "generating"
	StatusReasoning  Status = "reasoning"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether the status is an end state. Terminal generations
// never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Generation is the full record of one generation request.
type Generation struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Response   string    `json:"response"`
	TokenCount int       `json:"token_count"`
	Error      string    `json:"error,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	ShareToken string    `json:"share_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary is the truncated view of a generation used in listings.
type Summary struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	Response   string    `json:"response"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	summaryPromptLimit   = 100
	summaryResponseLimit = 200
)

// Summarize produces the listing view, truncating the prompt and response.
func (g *Generation) Summarize() Summary {
	return Summary{
		ID:         g.ID,
		Prompt:     truncate(g.Prompt, summaryPromptLimit),
		Model:      g.Model,
		Provider:   g.Provider,
		Status:     g.Status,
		Progress:   g.Progress,
		Response:   truncate(g.Response, summaryResponseLimit),
		TokenCount: g.TokenCount,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// Chunk is one ordered fragment of streamed output.
type Chunk struct {
	GenerationID string    `json:"generation_id"`
	Index        int       `json:"index"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// CostRecord is the usage accounting entry written when a generation
// completes.
type CostRecord struct {
	GenerationID string    `json:"generation_id"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	InputCost    float64   `json:"input_cost"`
	OutputCost   float64   `json:"output_cost"`
	TotalCost    float64   `json:"total_cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats is the aggregate usage view across all recorded generations.
type Stats struct {
	TotalGenerations int            `json:"total_generations"`
	TotalTokens      int            `json:"total_tokens"`
	TotalCost        float64        `json:"total_cost"`
	ByModel          map[string]int `json:"by_model"`
	ByStatus         map[string]int `json:"by_status"`
}
