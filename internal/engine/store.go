package engine

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no record matches.
var ErrNotFound = errors.New("engine: record not found")

// Store persists generations, their streamed chunks, and cost records.
// Implementations must be safe for concurrent use: the dispatcher writes
// from worker goroutines while HTTP handlers read.
type Store interface {
	// SaveGeneration inserts or replaces the record by ID.
	SaveGeneration(ctx context.Context, gen *Generation) error

	// Generation returns the record, or ErrNotFound.
	Generation(ctx context.Context, id string) (*Generation, error)

	// AppendChunk persists one streamed fragment. Duplicate indices are
	// tolerated; readers deduplicate.
	AppendChunk(ctx context.Context, chunk *Chunk) error

	// Chunks returns the fragments with Index >= from, ordered by index.
	Chunks(ctx context.Context, generationID string, from int) ([]Chunk, error)

	// ActiveGenerations returns non-terminal generations, newest first.
	ActiveGenerations(ctx context.Context) ([]Summary, error)

	// History returns the most recent generations, newest first.
	History(ctx context.Context, limit int) ([]Summary, error)

	// DeleteGeneration removes the record and its chunks and costs.
	DeleteGeneration(ctx context.Context, id string) error

	// AssignShareToken sets the share token on a completed generation.
	AssignShareToken(ctx context.Context, id, token string) error

	// GenerationByShareToken resolves a share token, or ErrNotFound.
	GenerationByShareToken(ctx context.Context, token string) (*Generation, error)

	// SaveCost records the usage accounting entry for a generation.
	SaveCost(ctx context.Context, rec *CostRecord) error

	// Stats aggregates usage across all recorded generations.
	Stats(ctx context.Context) (*Stats, error)

	// SweepStuck transitions non-terminal generations older than maxAge to
	// the error state with the given message, returning how many changed.
	SweepStuck(ctx context.Context, maxAge time.Duration, message string) (int, error)

	// PruneChunks deletes chunks of terminal generations older than the
	// retention window, returning how many were removed.
	PruneChunks(ctx context.Context, retention time.Duration) (int, error)
}
