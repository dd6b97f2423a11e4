package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/clipgate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerCols = []string{"id", "name", "access_code", "created_at"}

func newCustomersRepo(t *testing.T) (*CustomersRepositoryImpl, sqlmock.Sqlmock) {
	db, mock := newMockDB(t, "mysql")
	return NewCustomersRepository(db, NewOutboxRepository(db)), mock
}

func TestCustomersRepository_Insert(t *testing.T) {
	t.Run("assigns generated id", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)

		mock.ExpectExec(`INSERT INTO customers \(name, access_code, created_at\)`).
			WithArgs("Acme", "CUST01", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(7, 1))

		c := &model.Customer{Name: "Acme", AccessCode: "CUST01"}
		require.NoError(t, repo.Insert(context.Background(), c))

		assert.Equal(t, int64(7), c.ID)
		assert.False(t, c.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate access code", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)

		mock.ExpectExec(`INSERT INTO customers`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'CUST01'"})

		err := repo.Insert(context.Background(), &model.Customer{Name: "Acme", AccessCode: "CUST01"})
		assert.True(t, errors.Is(err, ErrDuplicate))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCustomersRepository_GetByAccessCode(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)
		created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`SELECT id, name, access_code, created_at\s+FROM customers\s+WHERE access_code = \?`).
			WithArgs("CUST01").
			WillReturnRows(sqlmock.NewRows(customerCols).AddRow(3, "Acme", "CUST01", created))

		c, err := repo.GetByAccessCode(context.Background(), "CUST01")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, int64(3), c.ID)
		assert.Equal(t, "Acme", c.Name)
		assert.Equal(t, created, c.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing returns nil", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)

		mock.ExpectQuery(`FROM customers\s+WHERE access_code = \?`).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(customerCols))

		c, err := repo.GetByAccessCode(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, c)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCustomersRepository_List(t *testing.T) {
	repo, mock := newCustomersRepo(t)
	now := time.Now()

	mock.ExpectQuery(`FROM customers\s+ORDER BY id ASC`).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow(1, "A", "CUSTA", now).
			AddRow(2, "B", "CUSTB", now))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomersRepository_Delete(t *testing.T) {
	t.Run("cascades submissions and returns refs", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT access_code FROM customers WHERE id = \? FOR UPDATE`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"access_code"}).AddRow("CUST03"))
		mock.ExpectQuery(`SELECT artifact_ref FROM submissions WHERE customer_id = \? FOR UPDATE`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"artifact_ref"}).
				AddRow("CUST03/2024-05/a.mp4").
				AddRow("CUST03/2024-06/b.mp4"))
		mock.ExpectExec(`DELETE FROM submissions WHERE customer_id = \?`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM customers WHERE id = \?`).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO outbox`).
			WithArgs("customer", "3", EventsTopic, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		refs, err := repo.Delete(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"CUST03/2024-05/a.mp4", "CUST03/2024-06/b.mp4"}, refs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		repo, mock := newCustomersRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT access_code FROM customers WHERE id = \? FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"access_code"}))
		mock.ExpectRollback()

		refs, err := repo.Delete(context.Background(), 99)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, refs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
