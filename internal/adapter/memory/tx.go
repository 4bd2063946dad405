package memory

import (
	"context"

	"github.com/google/uuid"
)

// TxManager runs fn directly. The in-memory store has no transactions; each
// operation is atomic on its own.
type TxManager struct{}

func (TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Locker is a no-op entity locker. In-process exclusion is the engine's job.
type Locker struct{}

func (Locker) LockEntity(context.Context, uuid.UUID) error { return nil }
