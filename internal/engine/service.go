package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/internal/llm"
)

// Config tunes the lifecycle engine.
type Config struct {
	// MaxPromptLen caps accepted prompt length in characters.
	MaxPromptLen int

	// SimulationDelay is the artificial latency of the simulation path.
	SimulationDelay time.Duration

	// SimulationTokenCount is the fixed token count reported by simulated
	// generations.
	SimulationTokenCount int

	// StuckAge is how old a non-terminal generation must be before the
	// sweeper fails it.
	StuckAge time.Duration

	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration

	// ChunkRetention is how long chunks of finished generations are kept.
	ChunkRetention time.Duration

	// HistoryLimit caps the history listing size.
	HistoryLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPromptLen:         50000,
		SimulationDelay:      2 * time.Second,
		SimulationTokenCount: 50,
		StuckAge:             30 * time.Minute,
		SweepInterval:        5 * time.Minute,
		ChunkRetention:       24 * time.Hour,
		HistoryLimit:         50,
	}
}

// ValidationError reports a rejected request. Handlers translate it to a
// client error rather than a server error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Service runs the generation lifecycle against a Store and a provider
// Registry.
type Service struct {
	store    Store
	registry *llm.Registry
	catalog  *llm.Catalog
	cfg      Config
}

// NewService creates the lifecycle engine.
func NewService(store Store, registry *llm.Registry, cfg Config) *Service {
	return &Service{
		store:    store,
		registry: registry,
		catalog:  llm.DefaultCatalog(),
		cfg:      cfg,
	}
}

// SubmitRequest is one generation submission.
type SubmitRequest struct {
	Prompt   string
	Model    string
	Simulate bool

	// NoStream requests a single blocking provider call instead of a live
	// stream. The generation still runs in the background and finishes
	// through the same terminal transition; only chunk delivery is skipped.
	NoStream bool

	// Temperature is passed through to providers that honor it; zero means
	// the provider default.
	Temperature float64

	// ParentID continues an earlier generation: the parent's prompt and
	// response are replayed as conversation history.
	ParentID string
}

// Submit validates the request, persists the starting record, and launches
// the generation in the background. It returns the new generation ID.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", &ValidationError{Message: "prompt is required"}
	}
	if len(prompt) > s.cfg.MaxPromptLen {
		return "", &ValidationError{
			Message: fmt.Sprintf("prompt exceeds maximum length of %d characters", s.cfg.MaxPromptLen),
		}
	}

	model, info := s.catalog.Resolve(req.Model)

	history := s.continuationHistory(ctx, req.ParentID)

	id := uuid.New().String()
	now := time.Now().UTC()
	gen := &Generation{
		ID:        id,
		Prompt:    prompt,
		Model:     model,
		Provider:  info.Provider.String(),
		Status:    StatusStarting,
		Progress:  0,
		ParentID:  req.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The starting record is saved before Submit returns so the ID is
	// immediately resolvable by status polls and stream tails.
	if err := s.store.SaveGeneration(ctx, gen); err != nil {
		return "", fmt.Errorf("failed to persist generation: %w", err)
	}

	slog.Info("generation submitted",
		"generation_id", id, "model", model, "provider", gen.Provider,
		"simulate", req.Simulate, "continuation", req.ParentID != "")

	genReq := &llm.GenerateRequest{
		Prompt:      prompt,
		Model:       model,
		History:     history,
		MaxTokens:   info.MaxTokens,
		Temperature: req.Temperature,
		Betas:       info.BetaFeatures,
	}

	provider, ok := s.registry.Provider(info.Provider)
	if req.Simulate || !ok {
		if !ok && !req.Simulate {
			slog.Warn("provider unavailable, using simulation",
				"provider", gen.Provider, "generation_id", id)
		}
		go s.runSimulation(context.Background(), gen, genReq)
		return id, nil
	}

	switch {
	case req.NoStream:
		go s.runBlocking(context.Background(), gen, provider, genReq)
	case info.Class == llm.ClassReasoning:
		go s.runReasoning(context.Background(), gen, provider, genReq)
	default:
		go s.runChat(context.Background(), gen, provider, genReq)
	}
	return id, nil
}

// continuationHistory replays a parent generation as a two-turn exchange.
// A missing or unfinished parent yields no history rather than an error.
func (s *Service) continuationHistory(ctx context.Context, parentID string) []llm.Message {
	if parentID == "" {
		return nil
	}

	parent, err := s.store.Generation(ctx, parentID)
	if err != nil {
		slog.Warn("continuation parent not found, starting fresh", "parent_id", parentID)
		return nil
	}
	if parent.Status != StatusCompleted || parent.Response == "" {
		slog.Warn("continuation parent has no completed response, starting fresh",
			"parent_id", parentID, "status", parent.Status)
		return nil
	}

	return []llm.Message{
		{Role: "user", Content: parent.Prompt},
		{Role: "assistant", Content: parent.Response},
	}
}

// Status returns the current generation record.
func (s *Service) Status(ctx context.Context, id string) (*Generation, error) {
	return s.store.Generation(ctx, id)
}

// Chunks returns streamed fragments with index >= from.
func (s *Service) Chunks(ctx context.Context, id string, from int) ([]Chunk, error) {
	return s.store.Chunks(ctx, id, from)
}

// Active lists generations still in flight.
func (s *Service) Active(ctx context.Context) ([]Summary, error) {
	return s.store.ActiveGenerations(ctx)
}

// History lists the most recent generations. A non-positive limit falls
// back to the configured default.
func (s *Service) History(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.store.History(ctx, limit)
}

// UsageStats aggregates token and cost usage.
func (s *Service) UsageStats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// Delete removes a generation and its chunks and cost records.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteGeneration(ctx, id)
}

// Share assigns a fresh share token to a generation and returns it.
func (s *Service) Share(ctx context.Context, id string) (string, error) {
	if _, err := s.store.Generation(ctx, id); err != nil {
		return "", err
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.store.AssignShareToken(ctx, id, token); err != nil {
		return "", err
	}
	return token, nil
}

// Shared resolves a share token to its generation.
func (s *Service) Shared(ctx context.Context, token string) (*Generation, error) {
	return s.store.GenerationByShareToken(ctx, token)
}

// ReloadProviders swaps the provider set atomically, picking up changed
// credentials without a restart.
func (s *Service) ReloadProviders(providers []llm.Provider) []string {
	s.registry.Replace(providers)
	names := s.registry.Available()
	out := make([]string, 0, len(names))
	for _, id := range names {
		out = append(out, id.String())
	}
	return out
}

// Models returns the catalog entries keyed by model ID.
func (s *Service) Models() map[string]llm.ModelInfo {
	return s.catalog.Models()
}
