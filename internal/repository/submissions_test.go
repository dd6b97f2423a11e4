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

func newSubmissionsRepo(t *testing.T) (*SubmissionsRepositoryImpl, sqlmock.Sqlmock) {
	db, mock := newMockDB(t, "mysql")
	return NewSubmissionsRepository(db, NewOutboxRepository(db)), mock
}

func TestSubmissionsRepository_Exists(t *testing.T) {
	repo, mock := newSubmissionsRepo(t)

	mock.ExpectQuery(`SELECT EXISTS\(\s+SELECT 1 FROM submissions WHERE customer_id = \? AND period_key = \?`).
		WithArgs(int64(1), "2024-06").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(`).
		WithArgs(int64(1), "2024-07").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.Exists(context.Background(), 1, "2024-06")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), 1, "2024-07")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionsRepository_Record(t *testing.T) {
	sub := func() *model.Submission {
		return &model.Submission{
			CustomerID:  1,
			PeriodKey:   "2024-06",
			ArtifactRef: "CUST01/2024-06/x.mp4",
			CreatedAt:   time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		}
	}

	t.Run("inserts row and outbox event atomically", func(t *testing.T) {
		repo, mock := newSubmissionsRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO submissions \(customer_id, period_key, artifact_ref, created_at\)`).
			WithArgs(int64(1), "2024-06", "CUST01/2024-06/x.mp4", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(42, 1))
		mock.ExpectExec(`INSERT INTO outbox`).
			WithArgs("submission", "42", EventsTopic, []byte(`{}`)).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		s := sub()
		require.NoError(t, repo.Record(context.Background(), s, []byte(`{}`)))
		assert.Equal(t, int64(42), s.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicate", func(t *testing.T) {
		repo, mock := newSubmissionsRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO submissions`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-2024-06'"})
		mock.ExpectRollback()

		s := sub()
		err := repo.Record(context.Background(), s, []byte(`{}`))
		assert.True(t, errors.Is(err, ErrDuplicate))
		assert.Zero(t, s.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing customer maps to ErrForeignKey", func(t *testing.T) {
		repo, mock := newSubmissionsRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO submissions`).
			WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
		mock.ExpectRollback()

		err := repo.Record(context.Background(), sub(), nil)
		assert.ErrorIs(t, err, ErrForeignKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("outbox failure rolls back", func(t *testing.T) {
		repo, mock := newSubmissionsRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO submissions`).WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectExec(`INSERT INTO outbox`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		s := sub()
		err := repo.Record(context.Background(), s, nil)
		assert.Error(t, err)
		assert.Zero(t, s.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubmissionsRepository_SubmittedCustomerIDs(t *testing.T) {
	repo, mock := newSubmissionsRepo(t)

	mock.ExpectQuery(`SELECT customer_id FROM submissions WHERE period_key = \?`).
		WithArgs("2024-07").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow(1).AddRow(4))

	set, err := repo.SubmittedCustomerIDs(context.Background(), "2024-07")
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 4: true}, set)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapMySQLErrorPassthrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, mapMySQLError(plain))

	other := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}
	assert.Equal(t, error(other), mapMySQLError(other))
}

func TestMapMySQLErrorLockConflicts(t *testing.T) {
	for _, n := range []uint16{1205, 1213} {
		err := mapMySQLError(&mysql.MySQLError{Number: n, Message: "lock"})
		assert.ErrorIs(t, err, ErrRetryable, "error %d", n)
		assert.NotErrorIs(t, err, ErrDuplicate, "error %d", n)
	}
}
