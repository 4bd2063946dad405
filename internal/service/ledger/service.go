package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

const (
	DefaultPendingLimit = 100
	MaxPendingLimit     = 1000
)

type changesetRepo interface {
	Append(ctx context.Context, cs domain.Changeset) (domain.Changeset, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Changeset, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Changeset, error)
	ListAll(ctx context.Context) ([]domain.Changeset, error)
	ListPending(ctx context.Context, limit int) ([]domain.Changeset, error)
}

type decisionRepo interface {
	Append(ctx context.Context, e domain.DecisionEdge) (domain.DecisionEdge, error)
	ListByChangeset(ctx context.Context, changesetID uuid.UUID) ([]domain.DecisionEdge, error)
	ListByChangesets(ctx context.Context, changesetIDs []uuid.UUID) ([]domain.DecisionEdge, error)
}

type entityResolver interface {
	Resolve(ctx context.Context, facts domain.Tags) (domain.Resolution, error)
}

type recomputeScheduler interface {
	Schedule(ids ...uuid.UUID)
}

// Service appends to the fact and moderation ledgers and answers moderation
// queries. Every accepted write schedules a recompute of the affected place.
type Service struct {
	changesets changesetRepo
	decisions  decisionRepo
	resolver   entityResolver
	scheduler  recomputeScheduler
	normalizer domain.TagNormalizer
	newID      func() (uuid.UUID, error)
	now        func() time.Time
	log        *slog.Logger
}

// NewService creates a new ledger service. A nil normalizer leaves tags as
// submitted.
func NewService(
	log *slog.Logger,
	changesets changesetRepo,
	decisions decisionRepo,
	resolver entityResolver,
	scheduler recomputeScheduler,
	normalizer domain.TagNormalizer,
) *Service {
	if normalizer == nil {
		normalizer = domain.NopNormalizer
	}
	return &Service{
		changesets: changesets,
		decisions:  decisions,
		resolver:   resolver,
		scheduler:  scheduler,
		normalizer: normalizer,
		newID:      uuid.NewV7,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With("service", "ledger"),
	}
}
