package sim

import (
	"context"
	"strings"
	"testing"

	"github.com/promptdeck/promptdeck/internal/llm"
)

func TestGenerate_LabelsOutput(t *testing.T) {
	p := New()

	resp, err := p.Generate(context.Background(), &llm.GenerateRequest{
		Prompt: "write me a poem",
		Model:  "claude-sonnet-4-20250514",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !strings.Contains(resp.Text, "Simulated response") {
		t.Errorf("simulated output must be labeled, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "claude-sonnet-4-20250514") {
		t.Errorf("simulated output should name the model, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "write me a poem") {
		t.Errorf("simulated output should echo the prompt, got %q", resp.Text)
	}

	_, body, ok := strings.Cut(resp.Text, "\n\n")
	if !ok || len(strings.Fields(body)) == 0 {
		t.Errorf("simulated output should carry generated body text, got %q", resp.Text)
	}
}

func TestGenerate_TruncatesLongPrompt(t *testing.T) {
	p := New()
	long := strings.Repeat("x", 500)

	resp, err := p.Generate(context.Background(), &llm.GenerateRequest{Prompt: long, Model: "gpt-4.1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(resp.Text, long) {
		t.Error("prompt echo should be truncated to 100 characters")
	}
	if !strings.Contains(resp.Text, long[:100]) {
		t.Error("prompt echo should keep the first 100 characters")
	}
}

func TestStream_ReassemblesToFullText(t *testing.T) {
	p := New()

	events, err := p.Stream(context.Background(), &llm.GenerateRequest{
		Prompt: "hello",
		Model:  "grok-3",
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text strings.Builder
	var meta *llm.StreamMetadata
	for ev := range events {
		switch {
		case ev.Error != nil:
			t.Fatalf("unexpected stream error: %v", ev.Error)
		case ev.Delta != nil:
			if ev.Delta.Channel != llm.ChannelText {
				t.Errorf("sim stream emitted channel %q", ev.Delta.Channel)
			}
			text.WriteString(ev.Delta.Text)
		case ev.Metadata != nil:
			meta = ev.Metadata
		}
	}

	if !strings.Contains(text.String(), "Simulated response") {
		t.Errorf("streamed text = %q", text.String())
	}
	if meta == nil {
		t.Fatal("no metadata event")
	}
	if meta.StopReason != "end_turn" {
		t.Errorf("StopReason = %q", meta.StopReason)
	}
}

func TestStream_ContextCancel(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, err := p.Stream(ctx, &llm.GenerateRequest{Prompt: "hello", Model: "grok-3"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	// The channel must close even with the context already canceled.
	for range events {
	}
}
