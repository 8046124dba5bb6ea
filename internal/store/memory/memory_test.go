package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/promptdeck/promptdeck/internal/engine"
)

func newGeneration(id string, status engine.Status, age time.Duration) *engine.Generation {
	ts := time.Now().UTC().Add(-age)
	return &engine.Generation{
		ID:        id,
		Prompt:    "prompt " + id,
		Model:     "claude-sonnet-4-20250514",
		Provider:  "anthropic",
		Status:    status,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestGeneration_RoundTripAndCopySemantics(t *testing.T) {
	s := New()
	ctx := context.Background()

	gen := newGeneration("g1", engine.StatusStarting, 0)
	if err := s.SaveGeneration(ctx, gen); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's struct after save must not affect the store.
	gen.Status = engine.StatusError

	got, err := s.Generation(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != engine.StatusStarting {
		t.Errorf("status = %q, want starting", got.Status)
	}

	// Mutating a read result must not affect the store either.
	got.Response = "scribbled"
	again, _ := s.Generation(ctx, "g1")
	if again.Response != "" {
		t.Errorf("store leaked caller mutation: %q", again.Response)
	}

	if _, err := s.Generation(ctx, "missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("missing generation error = %v, want ErrNotFound", err)
	}
}

func TestChunks_FromIndexAndOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Appended out of order.
	for _, idx := range []int{2, 0, 1, 3} {
		err := s.AppendChunk(ctx, &engine.Chunk{
			GenerationID: "g1",
			Index:        idx,
			Content:      string(rune('a' + idx)),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	chunks, err := s.Chunks(ctx, "g1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Index != 2 || chunks[1].Index != 3 {
		t.Errorf("indices = %d,%d, want 2,3", chunks[0].Index, chunks[1].Index)
	}

	all, _ := s.Chunks(ctx, "g1", 0)
	for i, c := range all {
		if c.Index != i {
			t.Errorf("position %d has index %d", i, c.Index)
		}
	}
}

func TestChunks_DuplicateIndicesFirstWriteWins(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "g1", Index: 0, Content: "first"})
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "g1", Index: 0, Content: "retry"})
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "g1", Index: 1, Content: "next"})

	chunks, err := s.Chunks(ctx, "g1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 after dedup", len(chunks))
	}
	if chunks[0].Content != "first" {
		t.Errorf("content = %q, want first write", chunks[0].Content)
	}
}

func TestActiveAndHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveGeneration(ctx, newGeneration("old-done", engine.StatusCompleted, 3*time.Hour))
	s.SaveGeneration(ctx, newGeneration("mid-active", engine.StatusGenerating, 2*time.Hour))
	s.SaveGeneration(ctx, newGeneration("new-active", engine.StatusReasoning, time.Hour))
	s.SaveGeneration(ctx, newGeneration("failed", engine.StatusError, 30*time.Minute))

	active, err := s.ActiveGenerations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if active[0].ID != "new-active" || active[1].ID != "mid-active" {
		t.Errorf("active order = %q, %q", active[0].ID, active[1].ID)
	}

	history, err := s.History(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history = %d, want 3 (limit)", len(history))
	}
	if history[0].ID != "failed" {
		t.Errorf("history[0] = %q, want newest", history[0].ID)
	}
}

func TestHistory_TruncatesSummaries(t *testing.T) {
	s := New()
	ctx := context.Background()

	long := newGeneration("g1", engine.StatusCompleted, 0)
	long.Prompt = strings.Repeat("p", 150)
	long.Response = strings.Repeat("r", 300)
	s.SaveGeneration(ctx, long)

	history, err := s.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(history[0].Prompt); got != 103 { // 100 chars + "..."
		t.Errorf("prompt length = %d, want 103", got)
	}
	if got := len(history[0].Response); got != 203 { // 200 chars + "..."
		t.Errorf("response length = %d, want 203", got)
	}
}

func TestDeleteGeneration_RemovesEverything(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveGeneration(ctx, newGeneration("g1", engine.StatusCompleted, 0))
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "g1", Index: 0, Content: "c"})
	s.SaveCost(ctx, &engine.CostRecord{GenerationID: "g1", TotalCost: 0.01})
	s.AssignShareToken(ctx, "g1", "tok")

	if err := s.DeleteGeneration(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Generation(ctx, "g1"); !errors.Is(err, engine.ErrNotFound) {
		t.Error("generation should be gone")
	}
	if chunks, _ := s.Chunks(ctx, "g1", 0); len(chunks) != 0 {
		t.Error("chunks should be gone")
	}
	if _, err := s.GenerationByShareToken(ctx, "tok"); !errors.Is(err, engine.ErrNotFound) {
		t.Error("share token should be gone")
	}
	stats, _ := s.Stats(ctx)
	if stats.TotalCost != 0 {
		t.Error("cost record should be gone")
	}

	if err := s.DeleteGeneration(ctx, "g1"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestAssignShareToken_ReplacesOldToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveGeneration(ctx, newGeneration("g1", engine.StatusCompleted, 0))

	if err := s.AssignShareToken(ctx, "g1", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignShareToken(ctx, "g1", "second"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GenerationByShareToken(ctx, "first"); !errors.Is(err, engine.ErrNotFound) {
		t.Error("old token should be revoked")
	}
	gen, err := s.GenerationByShareToken(ctx, "second")
	if err != nil {
		t.Fatal(err)
	}
	if gen.ShareToken != "second" {
		t.Errorf("share token = %q", gen.ShareToken)
	}
}

func TestSaveGeneration_PreservesShareToken(t *testing.T) {
	s := New()
	ctx := context.Background()

	gen := newGeneration("g1", engine.StatusGenerating, 0)
	s.SaveGeneration(ctx, gen)
	if err := s.AssignShareToken(ctx, "g1", "tok"); err != nil {
		t.Fatal(err)
	}

	// A worker snapshot taken before the token was assigned carries none;
	// persisting it must not revoke the token.
	snapshot := *gen
	snapshot.Status = engine.StatusCompleted
	snapshot.Response = "done"
	if err := s.SaveGeneration(ctx, &snapshot); err != nil {
		t.Fatal(err)
	}

	got, err := s.Generation(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ShareToken != "tok" {
		t.Errorf("share token = %q, want preserved", got.ShareToken)
	}
	if got.Status != engine.StatusCompleted {
		t.Errorf("status = %q, snapshot fields should still apply", got.Status)
	}
	if gen2, err := s.GenerationByShareToken(ctx, "tok"); err != nil || gen2.ID != "g1" {
		t.Errorf("token lookup = %v, %v", gen2, err)
	}
}

func TestStats_Aggregates(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := newGeneration("a", engine.StatusCompleted, 0)
	a.TokenCount = 10
	b := newGeneration("b", engine.StatusCompleted, 0)
	b.TokenCount = 20
	b.Model = "gpt-4.1"
	c := newGeneration("c", engine.StatusError, 0)
	for _, g := range []*engine.Generation{a, b, c} {
		s.SaveGeneration(ctx, g)
	}
	s.SaveCost(ctx, &engine.CostRecord{GenerationID: "a", TotalCost: 0.002})
	s.SaveCost(ctx, &engine.CostRecord{GenerationID: "b", TotalCost: 0.003})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalGenerations != 3 {
		t.Errorf("TotalGenerations = %d", stats.TotalGenerations)
	}
	if stats.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d", stats.TotalTokens)
	}
	if diff := stats.TotalCost - 0.005; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("TotalCost = %v", stats.TotalCost)
	}
	if stats.ByModel["claude-sonnet-4-20250514"] != 2 || stats.ByModel["gpt-4.1"] != 1 {
		t.Errorf("ByModel = %v", stats.ByModel)
	}
	if stats.ByStatus["completed"] != 2 || stats.ByStatus["error"] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
}

func TestSweepStuck(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveGeneration(ctx, newGeneration("stale", engine.StatusGenerating, time.Hour))
	s.SaveGeneration(ctx, newGeneration("fresh", engine.StatusGenerating, time.Minute))
	s.SaveGeneration(ctx, newGeneration("done", engine.StatusCompleted, time.Hour))

	// Created past the threshold, still streaming snapshots: age is keyed
	// on creation, so recent activity does not exempt it.
	busy := newGeneration("busy", engine.StatusGenerating, time.Hour)
	busy.UpdatedAt = time.Now().UTC()
	s.SaveGeneration(ctx, busy)

	swept, err := s.SweepStuck(ctx, 30*time.Minute, "timed out")
	if err != nil {
		t.Fatal(err)
	}
	if swept != 2 {
		t.Errorf("swept = %d, want 2", swept)
	}

	reclaimed, _ := s.Generation(ctx, "busy")
	if reclaimed.Status != engine.StatusError {
		t.Errorf("busy status = %q, want error", reclaimed.Status)
	}

	stale, _ := s.Generation(ctx, "stale")
	if stale.Status != engine.StatusError || stale.Error != "timed out" {
		t.Errorf("stale = %q / %q", stale.Status, stale.Error)
	}
	if stale.Response != "Error: timed out" {
		t.Errorf("stale response = %q", stale.Response)
	}
}

func TestPruneChunks(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.SaveGeneration(ctx, newGeneration("done", engine.StatusCompleted, 2*time.Hour))
	s.SaveGeneration(ctx, newGeneration("live", engine.StatusGenerating, 2*time.Hour))

	old := time.Now().UTC().Add(-48 * time.Hour)
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "done", Index: 0, Content: "old", CreatedAt: old})
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "done", Index: 1, Content: "new", CreatedAt: time.Now().UTC()})
	s.AppendChunk(ctx, &engine.Chunk{GenerationID: "live", Index: 0, Content: "old-but-active", CreatedAt: old})

	pruned, err := s.PruneChunks(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	done, _ := s.Chunks(ctx, "done", 0)
	if len(done) != 1 || done[0].Content != "new" {
		t.Errorf("done chunks = %+v", done)
	}

	// Chunks of non-terminal generations survive regardless of age.
	live, _ := s.Chunks(ctx, "live", 0)
	if len(live) != 1 {
		t.Errorf("live chunks = %d, want 1", len(live))
	}
}
