package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: uniqueViolationCode}, want: store.ErrDuplicate},
		{name: "foreign key", err: &pgconn.PgError{Code: foreignKeyViolationCode}, want: store.ErrInvalidEntity},
		{name: "check", err: &pgconn.PgError{Code: checkViolationCode}, want: store.ErrInvalidEntity},
		{name: "not null", err: &pgconn.PgError{Code: notNullViolationCode}, want: store.ErrInvalidEntity},
		{name: "serialization", err: &pgconn.PgError{Code: serializationFailureCode}, want: store.ErrTransactionFailed},
		{name: "deadlock", err: &pgconn.PgError{Code: deadlockDetectedCode}, want: store.ErrTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, MapError(tt.err), tt.want)
		})
	}

	assert.NoError(t, MapError(nil))
	plain := errors.New("boom")
	assert.Same(t, plain, MapError(plain))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckRowsAffected(sqlmock.NewResult(0, 1), store.ErrTaskNotFound))

	err := CheckRowsAffected(sqlmock.NewResult(0, 0), store.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))

	assert.ErrorIs(t, CheckRowsAffected(sqlmock.NewResult(0, 0), nil), store.ErrNotFound)

	driverErr := CheckRowsAffected(sqlmock.NewErrorResult(errors.New("driver")), store.ErrChunkNotFound)
	assert.Error(t, driverErr)
	assert.False(t, store.IsNotFoundError(driverErr), "driver failures are not reported as missing rows")
	assert.Error(t, CheckRowsAffected(nil, store.ErrTaskNotFound))
}

func TestChunkStore_UpdateContentDriverError(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresChunkStore(db, logger.Discard())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE chunks")).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver")))

	err := s.UpdateContent(context.Background(), "c1", "text")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrChunkNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
