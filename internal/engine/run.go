package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Progress model: 0.0 at submission, held below 1.0 while streaming, exactly
// 1.0 only on completion. Streaming progress is a function of accumulated
// response length so it is monotone and cheap to recompute.
const (
	progressFloor   = 0.1
	progressCeiling = 0.9

	// shortFormNorm is the response length treated as "nearly done" for
	// chat models; longFormNorm is the same for long-form models, which
	// routinely produce an order of magnitude more text.
	shortFormNorm = 1000.0
	longFormNorm  = 10000.0

	// Reasoning streams advance in two phases: the reasoning narrative
	// occupies [0.2, 0.5], the answer [0.5, 0.9].
	reasoningPhaseBase = 0.2
	reasoningPhaseCap  = 0.5
	reasoningNorm      = 500.0
	answerPhaseCap     = 0.9
	answerNorm         = 200.0

	// Synthesized fallback streaming pacing.
	fallbackWordInterval = 50 * time.Millisecond
)

// streamProgress maps accumulated response length to a progress value for
// linear chat streams.
func streamProgress(responseLen int, norm float64) float64 {
	p := progressFloor + (float64(responseLen)/norm)*0.8
	if p > progressCeiling {
		return progressCeiling
	}
	return p
}

func reasoningProgress(reasoningLen int) float64 {
	p := reasoningPhaseBase + (float64(reasoningLen)/reasoningNorm)*0.3
	if p > reasoningPhaseCap {
		return reasoningPhaseCap
	}
	return p
}

func answerProgress(answerLen int) float64 {
	p := reasoningPhaseCap + (float64(answerLen)/answerNorm)*0.4
	if p > answerPhaseCap {
		return answerPhaseCap
	}
	return p
}

// runChat drives a linear chat-style stream to completion.
func (s *Service) runChat(ctx context.Context, gen *Generation, provider llm.Provider, req *llm.GenerateRequest) {
	norm := shortFormNorm
	if provider.Name() == llm.ProviderAnthropic {
		norm = longFormNorm
	}

	s.update(ctx, gen, StatusGenerating, progressFloor, "")

	events, err := provider.Stream(ctx, req)
	if err != nil {
		s.fail(ctx, gen, err)
		return
	}

	var response strings.Builder
	chunkIndex := 0

	for ev := range events {
		switch {
		case ev.Error != nil:
			s.fail(ctx, gen, ev.Error)
			return

		case ev.Delta != nil:
			response.WriteString(ev.Delta.Text)
			s.appendChunk(ctx, gen.ID, chunkIndex, ev.Delta.Text)
			chunkIndex++

			s.update(ctx, gen, StatusGenerating,
				streamProgress(response.Len(), norm),
				strings.TrimSpace(response.String()))
		}
	}

	final := strings.TrimSpace(response.String())
	s.complete(ctx, gen, final, EstimateTokens(final))
}

// runBlocking performs one blocking provider call instead of consuming a
// stream. No chunks are written; pollers see the full response when the
// generation completes.
func (s *Service) runBlocking(ctx context.Context, gen *Generation, provider llm.Provider, req *llm.GenerateRequest) {
	s.update(ctx, gen, StatusGenerating, progressFloor, "")

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		s.fail(ctx, gen, err)
		return
	}

	final := strings.TrimSpace(resp.Text)
	s.complete(ctx, gen, final, EstimateTokens(final))
}

// runReasoning drives a typed-event reasoning stream. The reasoning
// narrative and answer accumulate on separate channels and are rendered as
// one composed document.
func (s *Service) runReasoning(ctx context.Context, gen *Generation, provider llm.Provider, req *llm.GenerateRequest) {
	s.update(ctx, gen, StatusReasoning, reasoningPhaseBase, "Reasoning model is thinking...")
	s.appendChunk(ctx, gen.ID, 0, "Reasoning in progress...")

	events, err := provider.Stream(ctx, req)
	if err != nil {
		slog.Error("reasoning stream failed to start",
			"generation_id", gen.ID, "model", gen.Model, "error", err)
		s.runReasoningFallback(ctx, gen, req, err)
		return
	}

	var reasoning, answer strings.Builder
	chunkIndex := 1

	for ev := range events {
		switch {
		case ev.Error != nil:
			s.fail(ctx, gen, ev.Error)
			return

		case ev.Delta != nil:
			s.appendChunk(ctx, gen.ID, chunkIndex, ev.Delta.Text)
			chunkIndex++

			if ev.Delta.Channel == llm.ChannelReasoning {
				reasoning.WriteString(ev.Delta.Text)
				s.update(ctx, gen, StatusReasoning,
					reasoningProgress(reasoning.Len()),
					llm.ComposeReasoningDocument(reasoning.String(), ""))
			} else {
				answer.WriteString(ev.Delta.Text)
				s.update(ctx, gen, StatusGenerating,
					answerProgress(answer.Len()),
					llm.ComposeReasoningDocument(reasoning.String(), answer.String()))
			}
		}
	}

	final := llm.ComposeReasoningDocument(reasoning.String(), answer.String())
	if final == "" {
		final = fmt.Sprintf("Response generated by model %s", gen.Model)
	}
	s.complete(ctx, gen, final, EstimateTokens(final))
}

const fallbackModel = "gpt-4o"

// runReasoningFallback handles a reasoning model whose native API is
// unavailable. It asks a standard chat model to produce a structured
// reasoning document; if that also fails, it synthesizes a diagnostic
// document. Either way the result is streamed word by word so the client
// experience matches a live stream, and the generation ends completed.
func (s *Service) runReasoningFallback(ctx context.Context, gen *Generation, req *llm.GenerateRequest, cause error) {
	text, err := s.fallbackDocument(ctx, req)
	if err != nil {
		slog.Error("reasoning fallback model failed",
			"generation_id", gen.ID, "error", err)
		text = diagnosticDocument(gen.Model, cause)
	}
	s.streamSynthesized(ctx, gen, text)
}

func (s *Service) fallbackDocument(ctx context.Context, req *llm.GenerateRequest) (string, error) {
	provider, ok := s.registry.Provider(llm.ProviderOpenAI)
	if !ok {
		return "", fmt.Errorf("no chat provider available for fallback")
	}

	prompt := fmt.Sprintf(`You are the reasoning model %s. Follow this exact structure:

## Reasoning

[Explain your step-by-step thinking here. Analyze the problem, consider
different approaches, weigh the options, and show the logic leading to your
conclusion.]

## Answer

[Give your final, clear and concise answer here, based on the reasoning
above.]

User prompt: %s`, req.Model, req.Prompt)

	resp, err := provider.Generate(ctx, &llm.GenerateRequest{
		Prompt:      prompt,
		Model:       fallbackModel,
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func diagnosticDocument(model string, cause error) string {
	return fmt.Sprintf(`## Reasoning

The reasoning model %s could not be reached. Its streaming API may be
unavailable, or the configured API key may not have access to this model
family.

## Answer

The reasoning model is not available right now. You can:
1. Verify that your OpenAI API key is valid and has reasoning-model access
2. Try another model
3. Retry in a few minutes

Error: %v`, model, cause)
}

// streamSynthesized replays already-complete text as a word-by-word stream,
// then completes the generation.
func (s *Service) streamSynthesized(ctx context.Context, gen *Generation, text string) {
	words := strings.Fields(text)
	var response strings.Builder
	chunkIndex := 1

	for i, word := range words {
		chunk := word + " "
		response.WriteString(chunk)
		s.appendChunk(ctx, gen.ID, chunkIndex, chunk)
		chunkIndex++

		progress := 0.3 + (float64(i)/float64(len(words)))*0.6
		if progress > 0.9 {
			progress = 0.9
		}
		s.update(ctx, gen, StatusGenerating, progress, strings.TrimSpace(response.String()))

		select {
		case <-ctx.Done():
			return
		case <-time.After(fallbackWordInterval):
		}
	}

	final := strings.TrimSpace(text)
	s.complete(ctx, gen, final, EstimateTokens(final))
}

// appendChunk persists one stream fragment. Chunk persistence is best
// effort: a failed append degrades live tailing but must not kill the
// generation.
func (s *Service) appendChunk(ctx context.Context, generationID string, index int, content string) {
	err := s.store.AppendChunk(ctx, &Chunk{
		GenerationID: generationID,
		Index:        index,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("failed to append chunk",
			"generation_id", generationID, "index", index, "error", err)
	}
}

// update persists an in-flight snapshot of the generation.
func (s *Service) update(ctx context.Context, gen *Generation, status Status, progress float64, response string) {
	gen.Status = status
	gen.Progress = progress
	gen.Response = response
	gen.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveGeneration(ctx, gen); err != nil {
		slog.Warn("failed to persist generation snapshot",
			"generation_id", gen.ID, "error", err)
	}
}

// complete transitions a generation to the completed state. The transition
// is guarded: a generation already in a terminal state (for example failed
// by the stuck sweeper) is never overwritten. Cost accounting fires only
// when this call performs the transition.
func (s *Service) complete(ctx context.Context, gen *Generation, response string, tokenCount int) {
	current, err := s.store.Generation(ctx, gen.ID)
	if err == nil && current.Status.Terminal() {
		slog.Warn("generation already terminal, skipping completion",
			"generation_id", gen.ID, "status", current.Status)
		return
	}

	gen.Status = StatusCompleted
	gen.Progress = 1.0
	gen.Response = response
	gen.TokenCount = tokenCount
	gen.Error = ""
	gen.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveGeneration(ctx, gen); err != nil {
		slog.Error("failed to persist completion, retrying",
			"generation_id", gen.ID, "error", err)
		if err := s.store.SaveGeneration(ctx, gen); err != nil {
			slog.Error("completion lost after retry",
				"generation_id", gen.ID, "error", err)
			return
		}
	}

	s.trackCost(ctx, gen)
	slog.Info("generation completed",
		"generation_id", gen.ID, "model", gen.Model, "tokens", tokenCount)
}

// fail transitions a generation to the error state with a user-facing
// message.
func (s *Service) fail(ctx context.Context, gen *Generation, cause error) {
	message := userFacingError(gen.Model, cause)

	current, err := s.store.Generation(ctx, gen.ID)
	if err == nil && current.Status.Terminal() {
		return
	}

	gen.Status = StatusError
	gen.Progress = 0
	gen.Response = "Error: " + message
	gen.Error = message
	gen.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveGeneration(ctx, gen); err != nil {
		slog.Error("failed to persist error state",
			"generation_id", gen.ID, "error", err)
	}
	slog.Error("generation failed",
		"generation_id", gen.ID, "model", gen.Model, "error", cause)
}

// userFacingError curates the error message shown to clients. Auth and
// unknown-model failures get actionable guidance; everything else passes
// through.
func userFacingError(model string, cause error) string {
	switch {
	case llm.IsAuthError(cause):
		return fmt.Sprintf("Authentication failed for %s. Check the configured API key.", model)
	case llm.IsModelNotFound(cause):
		return fmt.Sprintf("The model %s is not available with the configured API key.", model)
	default:
		return cause.Error()
	}
}
