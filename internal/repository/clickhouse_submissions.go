package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHSubmissionsRepository owns the ClickHouse projection of submission events.
type CHSubmissionsRepository interface {
	InsertBatch(ctx context.Context, events []model.SubmissionEvent) error
	ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]model.SubmissionEvent, error)
}

type chSubmissionsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHSubmissionsRepository(ch *sqlx.DB) CHSubmissionsRepository {
	return &chSubmissionsRepository{ch: ch}
}

// InsertBatch sends events as one ClickHouse block (prepared insert inside a tx).
func (r *chSubmissionsRepository) InsertBatch(ctx context.Context, events []model.SubmissionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO clipgate.submission_events
		    (event_type, customer_id, access_code, period_key, artifact_ref, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			ev.EventType, ev.CustomerID, ev.AccessCode, ev.PeriodKey, ev.ArtifactRef, ev.OccurredAt,
		); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}

	return tx.Commit()
}

func (r *chSubmissionsRepository) ListByCustomer(ctx context.Context, customerID int64, limit, offset int) ([]model.SubmissionEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT event_type, customer_id, access_code, period_key, artifact_ref, occurred_at
		FROM clipgate.submission_events FINAL
		WHERE customer_id = ? AND event_type = ?
		ORDER BY occurred_at DESC LIMIT ? OFFSET ?
	`

	rows := []model.SubmissionEvent{}
	if err := r.ch.SelectContext(ctx, &rows, q,
		customerID, string(model.EventSubmissionAccepted), limit, offset,
	); err != nil {
		return nil, err
	}
	return rows, nil
}
