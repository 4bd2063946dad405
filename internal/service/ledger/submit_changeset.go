package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// SubmitResult is the outcome of SubmitChangeset. Resolution is set only when
// the place was chosen by the resolver.
type SubmitResult struct {
	Changeset  domain.Changeset
	Resolution *domain.Resolution
}

// SubmitChangeset normalizes and appends a changeset, resolving its place
// first when the caller did not name one. Nothing is written when validation
// fails.
func (s *Service) SubmitChangeset(ctx context.Context, input SubmitChangesetInput) (*SubmitResult, error) {
	input.Tags = s.normalizer.Normalize(input.Tags.Clone())
	if err := input.Validate(); err != nil {
		return nil, err
	}

	res := &SubmitResult{}
	entityID := input.EntityID
	if entityID == uuid.Nil {
		r, err := s.resolver.Resolve(ctx, input.Tags)
		if err != nil {
			return nil, fmt.Errorf("resolve entity: %w", err)
		}
		entityID = r.EntityID
		res.Resolution = &r
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate changeset id: %w", err)
	}
	cs := domain.Changeset{
		ID:          id,
		ForEntity:   entityID,
		Tags:        input.Tags,
		AuthorTag:   input.AuthorTag,
		IsAutomated: input.IsAutomated,
		Sources:     input.Sources,
		Comment:     input.Comment,
		CreatedAt:   s.now(),
	}
	if err := cs.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.changesets.Append(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("append changeset: %w", err)
	}
	res.Changeset = stored

	s.scheduler.Schedule(stored.ForEntity)

	s.log.InfoContext(ctx, "changeset appended",
		slog.String("changeset_id", stored.ID.String()),
		slog.String("entity_id", stored.ForEntity.String()),
		slog.Int("tags", len(stored.Tags)),
		slog.String("author", stored.AuthorTag),
		slog.Bool("automated", stored.IsAutomated),
	)

	return res, nil
}
