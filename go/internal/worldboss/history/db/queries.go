package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type WorldbossTransition struct {
	ID            uuid.UUID
	Kind          string
	StartTime     sql.NullInt64
	EndTime       sql.NullInt64
	InactiveCount int32
	Detail        pqtype.NullRawMessage
	OccurredAt    time.Time
}

const insertTransition = `
INSERT INTO worldboss_transitions (
  id, kind, start_time, end_time, inactive_count, detail, occurred_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7
)
ON CONFLICT (id) DO NOTHING
`

type InsertTransitionParams struct {
	ID            uuid.UUID
	Kind          string
	StartTime     sql.NullInt64
	EndTime       sql.NullInt64
	InactiveCount int32
	Detail        pqtype.NullRawMessage
	OccurredAt    time.Time
}

func (q *Queries) InsertTransition(ctx context.Context, arg InsertTransitionParams) error {
	_, err := q.db.ExecContext(ctx, insertTransition,
		arg.ID,
		arg.Kind,
		arg.StartTime,
		arg.EndTime,
		arg.InactiveCount,
		arg.Detail,
		arg.OccurredAt,
	)
	return err
}

const latestTransitionByKinds = `
SELECT id, kind, start_time, end_time, inactive_count, detail, occurred_at
FROM worldboss_transitions
WHERE kind = ANY($1::text[])
ORDER BY occurred_at DESC
LIMIT 1
`

func (q *Queries) LatestTransitionByKinds(ctx context.Context, kinds []string) (WorldbossTransition, error) {
	row := q.db.QueryRowContext(ctx, latestTransitionByKinds, pq.Array(kinds))
	var i WorldbossTransition
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.StartTime,
		&i.EndTime,
		&i.InactiveCount,
		&i.Detail,
		&i.OccurredAt,
	)
	return i, err
}
