// Package postgres implements the engine.Store interface on PostgreSQL via
// pgx. Every write runs in its own short transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck/internal/engine"
)

// DB is the subset of pgxpool.Pool the store needs. Tests substitute a mock.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a PostgreSQL-backed engine.Store.
type Store struct {
	db DB
}

// New wraps an existing connection pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// Connect opens a pool against the given DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return New(pool), pool, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS generations (
			id          TEXT PRIMARY KEY,
			prompt      TEXT NOT NULL,
			model       TEXT NOT NULL,
			provider    TEXT NOT NULL,
			status      TEXT NOT NULL,
			progress    DOUBLE PRECISION NOT NULL DEFAULT 0,
			response    TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			parent_id   TEXT NOT NULL DEFAULT '',
			share_token TEXT,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS generations_share_token_idx
			ON generations (share_token) WHERE share_token IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS generation_chunks (
			generation_id TEXT NOT NULL,
			chunk_index   INTEGER NOT NULL,
			content       TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS generation_chunks_gen_idx
			ON generation_chunks (generation_id, chunk_index)`,
		`CREATE TABLE IF NOT EXISTS generation_costs (
			generation_id TEXT PRIMARY KEY,
			model         TEXT NOT NULL,
			provider      TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			input_cost    DOUBLE PRECISION NOT NULL,
			output_cost   DOUBLE PRECISION NOT NULL,
			total_cost    DOUBLE PRECISION NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

const saveGenerationQuery = `
	INSERT INTO generations
		(id, prompt, model, provider, status, progress, response, token_count, error, parent_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		progress = EXCLUDED.progress,
		response = EXCLUDED.response,
		token_count = EXCLUDED.token_count,
		error = EXCLUDED.error,
		updated_at = EXCLUDED.updated_at`

func (s *Store) SaveGeneration(ctx context.Context, gen *engine.Generation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, saveGenerationQuery,
		gen.ID, gen.Prompt, gen.Model, gen.Provider, string(gen.Status),
		gen.Progress, gen.Response, gen.TokenCount, gen.Error, gen.ParentID,
		gen.CreatedAt, gen.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}

	return tx.Commit(ctx)
}

const generationColumns = `id, prompt, model, provider, status, progress, response,
	token_count, error, parent_id, COALESCE(share_token, ''), created_at, updated_at`

func scanGeneration(row pgx.Row) (*engine.Generation, error) {
	var gen engine.Generation
	var status string
	err := row.Scan(&gen.ID, &gen.Prompt, &gen.Model, &gen.Provider, &status,
		&gen.Progress, &gen.Response, &gen.TokenCount, &gen.Error,
		&gen.ParentID, &gen.ShareToken, &gen.CreatedAt, &gen.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation: %w", err)
	}
	gen.Status = engine.Status(status)
	return &gen, nil
}

func (s *Store) Generation(ctx context.Context, id string) (*engine.Generation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE id = $1`, id)
	return scanGeneration(row)
}

func (s *Store) AppendChunk(ctx context.Context, chunk *engine.Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO generation_chunks (generation_id, chunk_index, content, created_at)
		 VALUES ($1, $2, $3, $4)`,
		chunk.GenerationID, chunk.Index, chunk.Content, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chunk: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Chunks(ctx context.Context, generationID string, from int) ([]engine.Chunk, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT ON (chunk_index) generation_id, chunk_index, content, created_at
		 FROM generation_chunks
		 WHERE generation_id = $1 AND chunk_index >= $2
		 ORDER BY chunk_index, created_at`,
		generationID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var out []engine.Chunk
	for rows.Next() {
		var c engine.Chunk
		if err := rows.Scan(&c.GenerationID, &c.Index, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const summaryColumns = `id, prompt, model, provider, status, progress, response,
	token_count, created_at, updated_at`

func scanSummaries(rows pgx.Rows) ([]engine.Summary, error) {
	defer rows.Close()

	var out []engine.Summary
	for rows.Next() {
		var gen engine.Generation
		var status string
		err := rows.Scan(&gen.ID, &gen.Prompt, &gen.Model, &gen.Provider, &status,
			&gen.Progress, &gen.Response, &gen.TokenCount, &gen.CreatedAt, &gen.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gen.Status = engine.Status(status)
		out = append(out, gen.Summarize())
	}
	return out, rows.Err()
}

func (s *Store) ActiveGenerations(ctx context.Context) ([]engine.Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+summaryColumns+` FROM generations
		 WHERE status NOT IN ('completed', 'error')
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active generations: %w", err)
	}
	return scanSummaries(rows)
}

func (s *Store) History(ctx context.Context, limit int) ([]engine.Summary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+summaryColumns+` FROM generations
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanSummaries(rows)
}

func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM generations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM generation_chunks WHERE generation_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM generation_costs WHERE generation_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cost record: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) AssignShareToken(ctx context.Context, id, token string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE generations SET share_token = $1, updated_at = $2 WHERE id = $3`,
		token, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to assign share token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (s *Store) GenerationByShareToken(ctx context.Context, token string) (*engine.Generation, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+generationColumns+` FROM generations WHERE share_token = $1`, token)
	return scanGeneration(row)
}

func (s *Store) SaveCost(ctx context.Context, rec *engine.CostRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO generation_costs
			(generation_id, model, provider, input_tokens, output_tokens, input_cost, output_cost, total_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (generation_id) DO NOTHING`,
		rec.GenerationID, rec.Model, rec.Provider, rec.InputTokens, rec.OutputTokens,
		rec.InputCost, rec.OutputCost, rec.TotalCost, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save cost record: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Stats(ctx context.Context) (*engine.Stats, error) {
	stats := &engine.Stats{
		ByModel:  make(map[string]int),
		ByStatus: make(map[string]int),
	}

	row := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(token_count), 0) FROM generations`)
	if err := row.Scan(&stats.TotalGenerations, &stats.TotalTokens); err != nil {
		return nil, fmt.Errorf("failed to scan totals: %w", err)
	}

	row = s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_cost), 0) FROM generation_costs`)
	if err := row.Scan(&stats.TotalCost); err != nil {
		return nil, fmt.Errorf("failed to scan total cost: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT model, COUNT(*) FROM generations GROUP BY model`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model counts: %w", err)
	}
	if err := scanCounts(rows, stats.ByModel); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM generations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	if err := scanCounts(rows, stats.ByStatus); err != nil {
		return nil, err
	}

	return stats, nil
}

func scanCounts(rows pgx.Rows, into map[string]int) error {
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan count: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

func (s *Store) SweepStuck(ctx context.Context, maxAge time.Duration, message string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Age is measured from creation so a stream that keeps touching
	// updated_at past the threshold is still reclaimed.
	tag, err := tx.Exec(ctx,
		`UPDATE generations
		 SET status = 'error',
		     progress = 0,
		     error = $1,
		     response = 'Error: ' || $1,
		     updated_at = $2
		 WHERE status NOT IN ('completed', 'error') AND created_at < $3`,
		message, time.Now().UTC(), time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stuck generations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) PruneChunks(ctx context.Context, retention time.Duration) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM generation_chunks c
		 USING generations g
		 WHERE c.generation_id = g.id
		   AND g.status IN ('completed', 'error')
		   AND c.created_at < $1`,
		time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var _ engine.Store = (*Store)(nil)
