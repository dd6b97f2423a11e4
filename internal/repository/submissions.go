package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmoiron/sqlx"
)

// SubmissionsRepository persists accepted submissions. UNIQUE(customer_id, period_key)
// guarantees at most one row per customer and month.
type SubmissionsRepository interface {
	Exists(ctx context.Context, customerID int64, period model.Period) (bool, error)
	Record(ctx context.Context, s *model.Submission, payload []byte) error
	SubmittedCustomerIDs(ctx context.Context, period model.Period) (map[int64]bool, error)
}

type SubmissionsRepositoryImpl struct {
	db     *sqlx.DB
	outbox OutboxRepository
}

func NewSubmissionsRepository(db *sqlx.DB, outbox OutboxRepository) *SubmissionsRepositoryImpl {
	return &SubmissionsRepositoryImpl{db: db, outbox: outbox}
}

var _ SubmissionsRepository = (*SubmissionsRepositoryImpl)(nil)

func (r *SubmissionsRepositoryImpl) Exists(ctx context.Context, customerID int64, period model.Period) (bool, error) {
	var ok bool
	err := r.db.GetContext(ctx, &ok, `
		SELECT EXISTS(
			SELECT 1 FROM submissions WHERE customer_id = ? AND period_key = ?
		)
	`, customerID, period.String())
	return ok, err
}

// Record inserts the submission row and its outbox event in one transaction and
// fills in s.ID. A concurrent winner for the same (customer, period) surfaces as
// ErrDuplicate; a customer deleted mid-flight surfaces as ErrForeignKey.
func (r *SubmissionsRepositoryImpl) Record(ctx context.Context, s *model.Submission, payload []byte) error {
	const q = `
		INSERT INTO submissions (customer_id, period_key, artifact_ref, created_at)
		VALUES (?, ?, ?, ?)
	`
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, s.CustomerID, s.PeriodKey.String(), s.ArtifactRef, s.CreatedAt)
		if err != nil {
			return mapMySQLError(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		if err := r.outbox.Insert(ctx, tx, model.OutboxEvent{
			Aggregate:   model.AggregateSubmission,
			AggregateID: strconv.FormatInt(id, 10),
			Payload:     payload,
		}); err != nil {
			return fmt.Errorf("insert outbox: %w", err)
		}

		s.ID = id
		return nil
	})
}

// SubmittedCustomerIDs returns the set of customers holding a submission for period.
func (r *SubmissionsRepositoryImpl) SubmittedCustomerIDs(ctx context.Context, period model.Period) (map[int64]bool, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `
		SELECT customer_id FROM submissions WHERE period_key = ?
	`, period.String()); err != nil {
		return nil, err
	}

	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
