package anthropic

import (
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/promptdeck/promptdeck/internal/llm"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New("")
	if !errors.Is(err, llm.ErrInvalidAPIKey) {
		t.Errorf("New with empty key = %v, want ErrInvalidAPIKey", err)
	}

	if _, err := New("sk-ant-test"); err != nil {
		t.Errorf("New with key = %v, want nil", err)
	}
}

func TestBuildMessageParams(t *testing.T) {
	req := &llm.GenerateRequest{
		Prompt: "continue from here",
		Model:  "claude-sonnet-4-20250514",
		History: []llm.Message{
			{Role: "user", Content: "original prompt"},
			{Role: "assistant", Content: "original answer"},
		},
		MaxTokens:   8192,
		Temperature: 0.7,
	}

	params := buildMessageParams(req)

	if string(params.Model) != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", params.Model)
	}
	if params.MaxTokens != 8192 {
		t.Errorf("MaxTokens = %d, want 8192", params.MaxTokens)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(params.Messages))
	}
	if params.Messages[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("history assistant turn has role %q", params.Messages[1].Role)
	}
	if params.Messages[2].Role != anthropic.MessageParamRoleUser {
		t.Errorf("prompt turn has role %q", params.Messages[2].Role)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.7 {
		t.Errorf("Temperature = %+v, want 0.7", params.Temperature)
	}
}

func TestBuildMessageParams_DefaultMaxTokens(t *testing.T) {
	params := buildMessageParams(&llm.GenerateRequest{
		Prompt: "hi",
		Model:  "claude-sonnet-4-20250514",
	})
	if params.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", params.MaxTokens, defaultMaxTokens)
	}
	if params.Temperature.Valid() {
		t.Error("unset temperature should not be sent")
	}
}

func TestRequestOptions_BetaHeader(t *testing.T) {
	if opts := requestOptions(&llm.GenerateRequest{Prompt: "hi"}); len(opts) != 0 {
		t.Errorf("no betas should produce no options, got %d", len(opts))
	}

	opts := requestOptions(&llm.GenerateRequest{
		Prompt: "hi",
		Betas:  []string{"output-128k-2025-02-19"},
	})
	if len(opts) != 1 {
		t.Fatalf("options = %d, want 1", len(opts))
	}
}
