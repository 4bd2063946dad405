package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// EffectiveDocDecision returns the authoritative document-level verdict on a
// changeset, or DecisionNone.
func (s *Service) EffectiveDocDecision(ctx context.Context, changesetID uuid.UUID) (domain.DecisionKind, error) {
	edges, err := s.decisions.ListByChangeset(ctx, changesetID)
	if err != nil {
		return domain.DecisionNone, fmt.Errorf("list decisions: %w", err)
	}
	return domain.EffectiveDocDecision(edges, changesetID), nil
}

// EffectiveTagDecision returns the authoritative verdict on one key of a
// changeset, or DecisionNone.
func (s *Service) EffectiveTagDecision(ctx context.Context, changesetID uuid.UUID, key string) (domain.DecisionKind, error) {
	edges, err := s.decisions.ListByChangeset(ctx, changesetID)
	if err != nil {
		return domain.DecisionNone, fmt.Errorf("list decisions: %w", err)
	}
	return domain.EffectiveTagDecision(edges, changesetID, key), nil
}

// ListByEntity returns the changesets of one place in ledger order.
func (s *Service) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.Changeset, error) {
	if entityID == uuid.Nil {
		return nil, domain.NewValidationError("entity_id", "required")
	}
	return s.changesets.ListByEntity(ctx, entityID)
}

// ListAll returns the whole fact ledger in ledger order.
func (s *Service) ListAll(ctx context.Context) ([]domain.Changeset, error) {
	return s.changesets.ListAll(ctx)
}

// ChangesetStatus is a changeset with its effective verdicts.
type ChangesetStatus struct {
	Changeset domain.Changeset
	Decision  domain.DecisionKind
	Keys      map[string]domain.DecisionKind
	Visible   []string
}

// History returns every changeset of a place with its effective document
// decision, per-key decisions and the keys currently admissible.
func (s *Service) History(ctx context.Context, entityID uuid.UUID) ([]ChangesetStatus, error) {
	changesets, err := s.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("list changesets: %w", err)
	}
	if len(changesets) == 0 {
		return nil, fmt.Errorf("entity %s: %w", entityID, domain.ErrNotFound)
	}
	return s.statuses(ctx, changesets)
}

// Pending returns changesets that have no document-level verdict yet, oldest
// first.
func (s *Service) Pending(ctx context.Context, limit int) ([]ChangesetStatus, error) {
	switch {
	case limit <= 0:
		limit = DefaultPendingLimit
	case limit > MaxPendingLimit:
		return nil, domain.NewValidationError("limit", fmt.Sprintf("max %d", MaxPendingLimit))
	}
	changesets, err := s.changesets.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return s.statuses(ctx, changesets)
}

func (s *Service) statuses(ctx context.Context, changesets []domain.Changeset) ([]ChangesetStatus, error) {
	out := make([]ChangesetStatus, 0, len(changesets))
	if len(changesets) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(changesets))
	for i, cs := range changesets {
		ids[i] = cs.ID
	}
	edges, err := s.decisions.ListByChangesets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	decisions, _ := domain.NewDecisions(edges)

	for _, cs := range changesets {
		st := ChangesetStatus{
			Changeset: cs,
			Decision:  decisions.Doc(cs.ID),
			Keys:      make(map[string]domain.DecisionKind),
			Visible:   []string{},
		}
		for _, k := range cs.Tags.Keys() {
			if d := decisions.Tag(cs.ID, k); d != domain.DecisionNone {
				st.Keys[k] = d
			}
			if decisions.Admissible(cs.ID, k) {
				st.Visible = append(st.Visible, k)
			}
		}
		out = append(out, st)
	}
	return out, nil
}
