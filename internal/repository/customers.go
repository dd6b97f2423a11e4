package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/jmoiron/sqlx"
)

type CustomersRepository interface {
	Insert(ctx context.Context, c *model.Customer) error
	GetByAccessCode(ctx context.Context, code string) (*model.Customer, error)
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	List(ctx context.Context) ([]model.Customer, error)
	Delete(ctx context.Context, id int64) ([]string, error)
}

type CustomersRepositoryImpl struct {
	db     *sqlx.DB
	outbox OutboxRepository
}

func NewCustomersRepository(db *sqlx.DB, outbox OutboxRepository) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db, outbox: outbox}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

// Insert stores c and fills in its generated ID.
func (r *CustomersRepositoryImpl) Insert(ctx context.Context, c *model.Customer) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (name, access_code, created_at)
		VALUES (?, ?, ?)
	`, c.Name, c.AccessCode, c.CreatedAt)
	if err != nil {
		return mapMySQLError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByAccessCode returns (nil, nil) when no customer owns code.
func (r *CustomersRepositoryImpl) GetByAccessCode(ctx context.Context, code string) (*model.Customer, error) {
	return r.getOne(ctx, `
		SELECT id, name, access_code, created_at
		  FROM customers
		 WHERE access_code = ? LIMIT 1
	`, code)
}

// GetByID returns (nil, nil) when the customer does not exist.
func (r *CustomersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	return r.getOne(ctx, `
		SELECT id, name, access_code, created_at
		  FROM customers
		 WHERE id = ? LIMIT 1
	`, id)
}

func (r *CustomersRepositoryImpl) getOne(ctx context.Context, q string, arg any) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns every customer in creation order.
func (r *CustomersRepositoryImpl) List(ctx context.Context) ([]model.Customer, error) {
	rows := []model.Customer{}
	if err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, access_code, created_at
		  FROM customers
		 ORDER BY id ASC
	`); err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes the customer together with its submissions and returns the
// artifact refs that belonged to them, so the caller can drop the stored payloads.
// The customer row is locked first: concurrent submission inserts wait on the
// foreign key and then fail, so no ref escapes the returned list.
func (r *CustomersRepositoryImpl) Delete(ctx context.Context, id int64) ([]string, error) {
	var refs []string

	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var code string
		err := tx.GetContext(ctx, &code, `SELECT access_code FROM customers WHERE id = ? FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}

		if err := tx.SelectContext(ctx, &refs, `
			SELECT artifact_ref FROM submissions WHERE customer_id = ? FOR UPDATE
		`, id); err != nil {
			return fmt.Errorf("lock submissions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE customer_id = ?`, id); err != nil {
			return fmt.Errorf("delete submissions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}

		payload, err := json.Marshal(model.Envelope{
			Type:       model.EventCustomerRemoved,
			CustomerID: id,
			AccessCode: code,
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}

		return r.outbox.Insert(ctx, tx, model.OutboxEvent{
			Aggregate:   model.AggregateCustomer,
			AggregateID: strconv.FormatInt(id, 10),
			Payload:     payload,
		})
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}
