package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunInTx_Commit(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO snapshots").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tm := NewTxManager(mock)
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		_, err := QuerierFromCtx(ctx, mock).Exec(ctx, "INSERT INTO snapshots (id) VALUES ($1)", uuid.New())
		return err
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("fold failed")
	err := NewTxManager(mock).RunInTx(context.Background(), func(context.Context) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewTxManager(mock).RunInTx(context.Background(), func(context.Context) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO snapshots").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	tm := NewTxManager(mock)
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := LockEntity(ctx, mock, uuid.New()); err != nil {
			return err
		}
		return tm.RunInTx(ctx, func(inner context.Context) error {
			assert.True(t, InTx(inner))
			_, err := QuerierFromCtx(inner, mock).Exec(inner, "INSERT INTO snapshots (id) VALUES ($1)", uuid.New())
			return err
		})
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_NestedErrorRollsBackOuter(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("inner failed")
	tm := NewTxManager(mock)
	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		return tm.RunInTx(ctx, func(context.Context) error { return sentinel })
	})

	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTx_BeginFails(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := NewTxManager(mock).RunInTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestQuerierFromCtx_FallsBackOutsideTx(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	assert.False(t, InTx(context.Background()))
	assert.Equal(t, Querier(mock), QuerierFromCtx(context.Background(), mock))
}

func TestLockEntity(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(EntityLockKey(id)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err := NewTxManager(mock).RunInTx(context.Background(), func(ctx context.Context) error {
		return LockEntity(ctx, mock, id)
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockEntity_RequiresTx(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	err := LockEntity(context.Background(), mock, uuid.New())
	require.ErrorIs(t, err, ErrNoTx)
}

func TestEntityLockKey_Stable(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b")
	assert.Equal(t, EntityLockKey(id), EntityLockKey(id))
	assert.NotEqual(t, EntityLockKey(id), EntityLockKey(uuid.New()))
}
