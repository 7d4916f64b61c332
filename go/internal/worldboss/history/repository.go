package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/bosswatch/go/internal/worldboss"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/events"
	"github.com/mcdev12/bosswatch/go/internal/worldboss/history/db"
	"github.com/sqlc-dev/pqtype"
)

// Schema creates the transitions table.
//
//go:embed schema.sql
var Schema string

// ErrNoWindow is returned by LatestWindow when no window was ever recorded.
var ErrNoWindow = errors.New("no event window recorded")

type Querier interface {
	InsertTransition(ctx context.Context, arg db.InsertTransitionParams) error
	LatestTransitionByKinds(ctx context.Context, kinds []string) (db.WorldbossTransition, error)
}

type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// detail carries the fields that only some transition kinds use.
type detail struct {
	Reason    events.CloseReason `json:"reason,omitempty"`
	CadenceMs int64              `json:"cadence_ms,omitempty"`
}

// Publish records one transition. Replaying the same event ID is a no-op.
func (r *Repository) Publish(ctx context.Context, t events.Transition) error {
	params := db.InsertTransitionParams{
		ID:            t.ID,
		Kind:          string(t.Kind),
		InactiveCount: int32(t.InactiveCount),
		OccurredAt:    t.OccurredAt.UTC(),
	}
	if t.HasWindow() {
		params.StartTime = sql.NullInt64{Int64: t.StartTime, Valid: true}
		params.EndTime = sql.NullInt64{Int64: t.EndTime, Valid: true}
	}

	d := detail{Reason: t.Reason, CadenceMs: t.CadenceMs}
	if d != (detail{}) {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal transition detail: %w", err)
		}
		params.Detail = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	if err := r.queries.InsertTransition(ctx, params); err != nil {
		return fmt.Errorf("failed to record transition %s: %w", t.ID, err)
	}
	return nil
}

// LatestWindow returns the most recently opened or updated event window.
func (r *Repository) LatestWindow(ctx context.Context) (*worldboss.EventWindow, error) {
	row, err := r.queries.LatestTransitionByKinds(ctx, []string{
		string(events.KindWindowOpened),
		string(events.KindWindowUpdated),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoWindow
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest window: %w", err)
	}
	if !row.StartTime.Valid || !row.EndTime.Valid {
		return nil, ErrNoWindow
	}

	return &worldboss.EventWindow{
		Start: row.StartTime.Int64,
		End:   row.EndTime.Int64,
	}, nil
}
