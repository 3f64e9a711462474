package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func newQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const insertSearchRun = `
INSERT INTO search_runs (id, venue, fetched, initial, survivors, truncated, empty, duration_ms, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

type InsertSearchRunParams struct {
	ID         pgtype.UUID
	Venue      string
	Fetched    int32
	Initial    int32
	Survivors  int32
	Truncated  bool
	Empty      bool
	DurationMs int64
	StartedAt  pgtype.Timestamptz
}

func (q *Queries) InsertSearchRun(ctx context.Context, arg InsertSearchRunParams) error {
	_, err := q.db.Exec(ctx, insertSearchRun,
		arg.ID, arg.Venue, arg.Fetched, arg.Initial, arg.Survivors,
		arg.Truncated, arg.Empty, arg.DurationMs, arg.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert search run: %w", err)
	}
	return nil
}

const insertSearchStage = `
INSERT INTO search_stages (run_id, position, name, count)
VALUES ($1, $2, $3, $4)`

type InsertSearchStageParams struct {
	RunID    pgtype.UUID
	Position int32
	Name     string
	Count    int32
}

func (q *Queries) InsertSearchStage(ctx context.Context, arg InsertSearchStageParams) error {
	if _, err := q.db.Exec(ctx, insertSearchStage, arg.RunID, arg.Position, arg.Name, arg.Count); err != nil {
		return fmt.Errorf("insert search stage: %w", err)
	}
	return nil
}

const listRecentSearchRuns = `
SELECT id, venue, fetched, initial, survivors, truncated, empty, duration_ms, started_at
FROM search_runs
WHERE venue = $1
ORDER BY started_at DESC
LIMIT $2`

type SearchRunRow struct {
	ID         pgtype.UUID
	Venue      string
	Fetched    int32
	Initial    int32
	Survivors  int32
	Truncated  bool
	Empty      bool
	DurationMs int64
	StartedAt  pgtype.Timestamptz
}

func (q *Queries) ListRecentSearchRuns(ctx context.Context, venue string, limit int32) ([]SearchRunRow, error) {
	rows, err := q.db.Query(ctx, listRecentSearchRuns, venue, limit)
	if err != nil {
		return nil, fmt.Errorf("list search runs: %w", err)
	}
	defer rows.Close()

	var items []SearchRunRow
	for rows.Next() {
		var i SearchRunRow
		if err := rows.Scan(
			&i.ID, &i.Venue, &i.Fetched, &i.Initial, &i.Survivors,
			&i.Truncated, &i.Empty, &i.DurationMs, &i.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search run: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list search runs: %w", err)
	}
	return items, nil
}
