package llm

import (
	"strings"
	"testing"
)

func TestComposeReasoningDocument(t *testing.T) {
	tests := []struct {
		name      string
		reasoning string
		answer    string
		want      string
	}{
		{
			name:      "both parts present",
			reasoning: "First I considered the options.",
			answer:    "The answer is 42.",
			want:      "## Reasoning\n\nFirst I considered the options.\n\n---\n\n## Answer\n\nThe answer is 42.",
		},
		{
			name:      "reasoning only",
			reasoning: "Still thinking about it.",
			answer:    "",
			want:      "## Reasoning\n\nStill thinking about it.",
		},
		{
			name:      "answer only",
			reasoning: "",
			answer:    "Direct answer.",
			want:      "Direct answer.",
		},
		{
			name:      "both empty",
			reasoning: "",
			answer:    "",
			want:      "",
		},
		{
			name:      "whitespace trimmed",
			reasoning: "  padded reasoning  ",
			answer:    "\npadded answer\n",
			want:      "## Reasoning\n\npadded reasoning\n\n---\n\n## Answer\n\npadded answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeReasoningDocument(tt.reasoning, tt.answer)
			if got != tt.want {
				t.Errorf("ComposeReasoningDocument() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposeReasoningDocument_DelimiterSeparatesSections(t *testing.T) {
	doc := ComposeReasoningDocument("reasoning text", "answer text")

	parts := strings.Split(doc, "\n\n---\n\n")
	if len(parts) != 2 {
		t.Fatalf("expected 2 sections, got %d: %q", len(parts), doc)
	}
	if !strings.HasPrefix(parts[0], "## Reasoning") {
		t.Errorf("first section should be reasoning, got %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "## Answer") {
		t.Errorf("second section should be answer, got %q", parts[1])
	}
}
