package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// runSimulation completes a generation without a real backend. Used when
// simulation is requested explicitly and when the model's provider has no
// credential. The artificial delay keeps the lifecycle observable: clients
// see the starting state before the terminal one.
func (s *Service) runSimulation(ctx context.Context, gen *Generation, req *llm.GenerateRequest) {
	slog.Info("running simulated generation", "generation_id", gen.ID, "model", gen.Model)

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.SimulationDelay):
	}

	text := s.simulatedResponse(ctx, req)
	s.complete(ctx, gen, text, s.cfg.SimulationTokenCount)
}

func (s *Service) simulatedResponse(ctx context.Context, req *llm.GenerateRequest) string {
	if provider, ok := s.registry.Provider(llm.ProviderSim); ok {
		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp.Text
		}
		slog.Warn("simulation provider failed, using static text", "error", err)
	}

	prompt := req.Prompt
	if len(prompt) > 100 {
		prompt = prompt[:100]
	}
	return fmt.Sprintf("Simulated response for model %s.\n\nPrompt received: %s...\n\nThis is a simulation because the real API is not available.",
		req.Model, prompt)
}
