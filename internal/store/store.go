// Package store keeps the history of search runs in Postgres. Only the run
// summary and its stage counts are stored, never markets or filters.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store wraps Queries and provides transaction support.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Queries: newQueries(pool),
		pool:    pool,
	}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx executes fn within a transaction.
// If fn returns an error, the transaction is rolled back.
// Otherwise, the transaction is committed.
func (s *Store) WithTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	qtx := s.Queries.WithTx(tx)

	if err := fn(qtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

type StageCount struct {
	Name  string
	Count int
}

// SearchRun is the summary of one search.
type SearchRun struct {
	ID        uuid.UUID
	Venue     string
	Fetched   int
	Initial   int
	Survivors int
	Truncated bool
	Empty     bool
	Duration  time.Duration
	StartedAt time.Time
	Stages    []StageCount
}

// RecordSearchRun stores run and its stages in one transaction.
func (s *Store) RecordSearchRun(ctx context.Context, run SearchRun) error {
	params := runParams(run)
	return s.WithTx(ctx, func(q *Queries) error {
		if err := q.InsertSearchRun(ctx, params); err != nil {
			return err
		}
		for _, st := range stageParams(params.ID, run.Stages) {
			if err := q.InsertSearchStage(ctx, st); err != nil {
				return err
			}
		}
		return nil
	})
}

func runParams(run SearchRun) InsertSearchRunParams {
	return InsertSearchRunParams{
		ID:         pgtype.UUID{Bytes: run.ID, Valid: true},
		Venue:      run.Venue,
		Fetched:    int32(run.Fetched),
		Initial:    int32(run.Initial),
		Survivors:  int32(run.Survivors),
		Truncated:  run.Truncated,
		Empty:      run.Empty,
		DurationMs: run.Duration.Milliseconds(),
		StartedAt:  pgtype.Timestamptz{Time: run.StartedAt, Valid: !run.StartedAt.IsZero()},
	}
}

func stageParams(runID pgtype.UUID, stages []StageCount) []InsertSearchStageParams {
	out := make([]InsertSearchStageParams, len(stages))
	for i, st := range stages {
		out[i] = InsertSearchStageParams{
			RunID:    runID,
			Position: int32(i),
			Name:     st.Name,
			Count:    int32(st.Count),
		}
	}
	return out
}
