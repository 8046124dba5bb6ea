// Package memory implements the engine.Store interface with in-process
// maps. It backs development and test deployments where no database is
// configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/promptdeck/promptdeck/internal/engine"
)

// Store is an in-memory engine.Store. All methods copy on read and write so
// callers never share record memory with the store.
type Store struct {
	mu          sync.RWMutex
	generations map[string]engine.Generation
	chunks      map[string][]engine.Chunk
	costs       map[string]engine.CostRecord
	shareTokens map[string]string // token -> generation ID
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		generations: make(map[string]engine.Generation),
		chunks:      make(map[string][]engine.Chunk),
		costs:       make(map[string]engine.CostRecord),
		shareTokens: make(map[string]string),
	}
}

func (s *Store) SaveGeneration(ctx context.Context, gen *engine.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *gen
	// Share tokens are owned by AssignShareToken; a worker snapshot taken
	// before the token existed must not revoke it.
	if prev, ok := s.generations[gen.ID]; ok && prev.ShareToken != "" {
		record.ShareToken = prev.ShareToken
	}
	s.generations[gen.ID] = record
	return nil
}

func (s *Store) Generation(ctx context.Context, id string) (*engine.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gen, ok := s.generations[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := gen
	return &out, nil
}

func (s *Store) AppendChunk(ctx context.Context, chunk *engine.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.GenerationID] = append(s.chunks[chunk.GenerationID], *chunk)
	return nil
}

func (s *Store) Chunks(ctx context.Context, generationID string, from int) ([]engine.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.chunks[generationID]
	out := make([]engine.Chunk, 0, len(all))
	seen := make(map[int]bool, len(all))
	for _, c := range all {
		// Duplicate indices can occur when a worker retries an append.
		// First write wins.
		if c.Index < from || seen[c.Index] {
			continue
		}
		seen[c.Index] = true
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) ActiveGenerations(ctx context.Context) ([]engine.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []engine.Summary
	for _, gen := range s.generations {
		if gen.Status.Terminal() {
			continue
		}
		out = append(out, gen.Summarize())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) History(ctx context.Context, limit int) ([]engine.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.Summary, 0, len(s.generations))
	for _, gen := range s.generations {
		out = append(out, gen.Summarize())
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(list []engine.Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, ok := s.generations[id]
	if !ok {
		return engine.ErrNotFound
	}
	delete(s.generations, id)
	delete(s.chunks, id)
	delete(s.costs, id)
	if gen.ShareToken != "" {
		delete(s.shareTokens, gen.ShareToken)
	}
	return nil
}

func (s *Store) AssignShareToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen, ok := s.generations[id]
	if !ok {
		return engine.ErrNotFound
	}
	if gen.ShareToken != "" {
		delete(s.shareTokens, gen.ShareToken)
	}
	gen.ShareToken = token
	gen.UpdatedAt = time.Now().UTC()
	s.generations[id] = gen
	s.shareTokens[token] = id
	return nil
}

func (s *Store) GenerationByShareToken(ctx context.Context, token string) (*engine.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.shareTokens[token]
	if !ok {
		return nil, engine.ErrNotFound
	}
	gen, ok := s.generations[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	out := gen
	return &out, nil
}

func (s *Store) SaveCost(ctx context.Context, rec *engine.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costs[rec.GenerationID] = *rec
	return nil
}

func (s *Store) Stats(ctx context.Context) (*engine.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &engine.Stats{
		ByModel:  make(map[string]int),
		ByStatus: make(map[string]int),
	}
	for _, gen := range s.generations {
		stats.TotalGenerations++
		stats.TotalTokens += gen.TokenCount
		stats.ByModel[gen.Model]++
		stats.ByStatus[string(gen.Status)]++
	}
	for _, rec := range s.costs {
		stats.TotalCost += rec.TotalCost
	}
	return stats, nil
}

func (s *Store) SweepStuck(ctx context.Context, maxAge time.Duration, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Age is measured from creation: a stream that keeps producing output
	// past the threshold is still reclaimed.
	cutoff := time.Now().UTC().Add(-maxAge)
	swept := 0
	for id, gen := range s.generations {
		if gen.Status.Terminal() || !gen.CreatedAt.Before(cutoff) {
			continue
		}
		gen.Status = engine.StatusError
		gen.Progress = 0
		gen.Error = message
		gen.Response = "Error: " + message
		gen.UpdatedAt = time.Now().UTC()
		s.generations[id] = gen
		swept++
	}
	return swept, nil
}

func (s *Store) PruneChunks(ctx context.Context, retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	pruned := 0
	for id, chunks := range s.chunks {
		gen, ok := s.generations[id]
		if ok && !gen.Status.Terminal() {
			continue
		}
		kept := chunks[:0]
		for _, c := range chunks {
			if c.CreatedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, c)
		}
		if len(kept) == 0 {
			delete(s.chunks, id)
		} else {
			s.chunks[id] = kept
		}
	}
	return pruned, nil
}

var _ engine.Store = (*Store)(nil)
