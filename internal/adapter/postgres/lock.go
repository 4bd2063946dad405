package postgres

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNoTx is returned when a transaction-scoped lock is requested outside RunInTx.
var ErrNoTx = errors.New("advisory lock requires a transaction")

// lockNamespace keeps entity lock keys apart from other advisory lock users.
const lockNamespace int64 = 0x67617a65 // "gaze"

// EntityLockKey folds an entity id into a 64-bit advisory lock key.
func EntityLockKey(id uuid.UUID) int64 {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	return int64(hi^lo) ^ lockNamespace
}

const advisoryXactLockSQL = `SELECT pg_advisory_xact_lock($1)`

// LockEntity takes a transaction-scoped advisory lock on the entity. The lock
// is released when the surrounding RunInTx commits or rolls back.
func LockEntity(ctx context.Context, q Querier, id uuid.UUID) error {
	if !InTx(ctx) {
		return ErrNoTx
	}
	if _, err := QuerierFromCtx(ctx, q).Exec(ctx, advisoryXactLockSQL, EntityLockKey(id)); err != nil {
		return fmt.Errorf("lock entity %s: %w", id, MapError(err, "entity", id.String()))
	}
	return nil
}

// EntityLocker adapts LockEntity to the projection engine.
type EntityLocker struct {
	db Querier
}

// NewEntityLocker creates an EntityLocker.
func NewEntityLocker(db Querier) *EntityLocker {
	return &EntityLocker{db: db}
}

// LockEntity blocks until the entity's advisory lock is held by the current transaction.
func (l *EntityLocker) LockEntity(ctx context.Context, id uuid.UUID) error {
	return LockEntity(ctx, l.db, id)
}
