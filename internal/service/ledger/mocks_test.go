package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// entityResolverMock is a hand-written mock of entityResolver.
type entityResolverMock struct {
	ResolveFunc func(ctx context.Context, facts domain.Tags) (domain.Resolution, error)

	mu    sync.Mutex
	calls []domain.Tags
}

func (m *entityResolverMock) Resolve(ctx context.Context, facts domain.Tags) (domain.Resolution, error) {
	m.mu.Lock()
	m.calls = append(m.calls, facts)
	m.mu.Unlock()
	if m.ResolveFunc == nil {
		panic("entityResolverMock.ResolveFunc: method is nil but Resolve was just called")
	}
	return m.ResolveFunc(ctx, facts)
}

func (m *entityResolverMock) ResolveCalls() []domain.Tags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recomputeSchedulerMock records scheduled entity ids.
type recomputeSchedulerMock struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (m *recomputeSchedulerMock) Schedule(ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, ids...)
}

func (m *recomputeSchedulerMock) Scheduled() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids
}

// decisionRepoMock wraps a real repo and can fail Append.
type decisionRepoMock struct {
	decisionRepo
	AppendFunc func(ctx context.Context, e domain.DecisionEdge) (domain.DecisionEdge, error)
}

func (m *decisionRepoMock) Append(ctx context.Context, e domain.DecisionEdge) (domain.DecisionEdge, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, e)
	}
	return m.decisionRepo.Append(ctx, e)
}
