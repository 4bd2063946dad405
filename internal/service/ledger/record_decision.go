package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// RecordDecision appends a moderation verdict. The target changeset must
// exist and, for tag-level verdicts, carry the key. Later verdicts are stored
// but do not override an earlier one of the same level.
func (s *Service) RecordDecision(ctx context.Context, input RecordDecisionInput) (domain.DecisionEdge, error) {
	if err := input.Validate(); err != nil {
		return domain.DecisionEdge{}, err
	}

	target, err := s.changesets.GetByID(ctx, input.Changeset)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DecisionEdge{}, domain.NewValidationError("changeset", "changeset does not exist")
		}
		return domain.DecisionEdge{}, fmt.Errorf("get changeset: %w", err)
	}
	if input.Kind.IsTagLevel() {
		if _, ok := target.Tags[input.Key]; !ok {
			return domain.DecisionEdge{}, domain.NewValidationError("key", "changeset has no such key")
		}
	}

	id, err := s.newID()
	if err != nil {
		return domain.DecisionEdge{}, fmt.Errorf("generate edge id: %w", err)
	}
	edge := domain.DecisionEdge{
		ID:              id,
		Kind:            input.Kind,
		TargetChangeset: target.ID,
		TargetKey:       input.Key,
		Reviewer:        input.Reviewer,
		CreatedAt:       s.now(),
	}
	if err := edge.Validate(); err != nil {
		return domain.DecisionEdge{}, err
	}

	stored, err := s.decisions.Append(ctx, edge)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DecisionEdge{}, domain.NewValidationError("changeset", "changeset does not exist")
		}
		return domain.DecisionEdge{}, fmt.Errorf("append decision: %w", err)
	}

	s.scheduler.Schedule(target.ForEntity)

	s.log.InfoContext(ctx, "decision recorded",
		slog.String("edge_id", stored.ID.String()),
		slog.String("kind", stored.Kind.String()),
		slog.String("changeset_id", stored.TargetChangeset.String()),
		slog.String("key", stored.TargetKey),
		slog.String("reviewer", stored.Reviewer),
	)

	return stored, nil
}
