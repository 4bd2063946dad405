package domain

import (
	"time"

	"github.com/google/uuid"
)

// Changeset is an immutable proposal of tag facts about one place.
type Changeset struct {
	ID          uuid.UUID
	ForEntity   uuid.UUID
	Tags        Tags
	AuthorTag   string
	IsAutomated bool
	Sources     string
	Comment     string
	CreatedAt   time.Time
}

// Validate rejects changesets that must never reach the ledger.
func (c Changeset) Validate() error {
	var errs []FieldError
	if c.ForEntity == uuid.Nil {
		errs = append(errs, FieldError{Field: "for_entity", Message: "required"})
	}
	if len(c.Tags) == 0 {
		errs = append(errs, FieldError{Field: "tags", Message: "at least one tag required"})
	}
	errs = append(errs, c.Tags.Validate()...)
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Less orders changesets by creation time, then by id.
func (c Changeset) Less(o Changeset) bool {
	if !c.CreatedAt.Equal(o.CreatedAt) {
		return c.CreatedAt.Before(o.CreatedAt)
	}
	return compareIDs(c.ID, o.ID) < 0
}
