package ledger

import (
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// SubmitChangesetInput holds a proposed edit. A zero EntityID asks the
// resolver to pick the place.
type SubmitChangesetInput struct {
	EntityID    uuid.UUID
	Tags        domain.Tags
	AuthorTag   string
	IsAutomated bool
	Sources     string
	Comment     string
}

// Validate checks all fields and collects all errors.
func (i SubmitChangesetInput) Validate() error {
	var errs []domain.FieldError
	if len(i.Tags) == 0 {
		errs = append(errs, domain.FieldError{Field: "tags", Message: "at least one tag required"})
	}
	errs = append(errs, i.Tags.Validate()...)
	if len(i.AuthorTag) > 200 {
		errs = append(errs, domain.FieldError{Field: "author_tag", Message: "max 200 characters"})
	}
	if len(i.Comment) > 2000 {
		errs = append(errs, domain.FieldError{Field: "comment", Message: "max 2000 characters"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}

// RecordDecisionInput holds one moderation verdict. Key is required for
// tag-level kinds and must be empty otherwise.
type RecordDecisionInput struct {
	Kind      domain.DecisionKind
	Changeset uuid.UUID
	Key       string
	Reviewer  string
}

// Validate checks all fields and collects all errors.
func (i RecordDecisionInput) Validate() error {
	var errs []domain.FieldError
	if !i.Kind.IsValid() {
		errs = append(errs, domain.FieldError{Field: "kind", Message: "unknown decision kind"})
	}
	if i.Changeset == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "changeset", Message: "required"})
	}
	if strings.TrimSpace(i.Reviewer) == "" {
		errs = append(errs, domain.FieldError{Field: "reviewer", Message: "required"})
	}
	if i.Kind.IsTagLevel() && strings.TrimSpace(i.Key) == "" {
		errs = append(errs, domain.FieldError{Field: "key", Message: "required for tag-level decisions"})
	}
	if i.Kind.IsDocLevel() && i.Key != "" {
		errs = append(errs, domain.FieldError{Field: "key", Message: "must be empty for document-level decisions"})
	}
	if len(errs) > 0 {
		return domain.NewValidationErrors(errs)
	}
	return nil
}
