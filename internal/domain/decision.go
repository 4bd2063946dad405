package domain

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// DecisionKind is the verdict carried by a DecisionEdge.
type DecisionKind string

const (
	// DecisionNone means no effective decision exists for the target.
	DecisionNone DecisionKind = ""

	DecisionApproved DecisionKind = "APPROVED"
	DecisionRejected DecisionKind = "REJECTED"
	DecisionDeleted  DecisionKind = "DELETED"

	DecisionApprovedTag DecisionKind = "APPROVED_TAG"
	DecisionRejectedTag DecisionKind = "REJECTED_TAG"
)

func (k DecisionKind) String() string {
	if k == DecisionNone {
		return "NONE"
	}
	return string(k)
}

func (k DecisionKind) IsValid() bool {
	return k.IsDocLevel() || k.IsTagLevel()
}

// IsDocLevel reports whether the kind judges a whole changeset.
func (k DecisionKind) IsDocLevel() bool {
	switch k {
	case DecisionApproved, DecisionRejected, DecisionDeleted:
		return true
	}
	return false
}

// IsTagLevel reports whether the kind judges a single key of a changeset.
func (k DecisionKind) IsTagLevel() bool {
	switch k {
	case DecisionApprovedTag, DecisionRejectedTag:
		return true
	}
	return false
}

// DecisionEdge is an immutable moderation verdict against a changeset,
// or against one key of it when Kind is tag-level.
type DecisionEdge struct {
	ID              uuid.UUID
	Kind            DecisionKind
	TargetChangeset uuid.UUID
	TargetKey       string
	Reviewer        string
	CreatedAt       time.Time
}

// Validate checks the edge shape. Target existence is checked by the ledger.
func (e DecisionEdge) Validate() error {
	var errs []FieldError
	if !e.Kind.IsValid() {
		errs = append(errs, FieldError{Field: "kind", Message: "invalid decision kind"})
	}
	if e.TargetChangeset == uuid.Nil {
		errs = append(errs, FieldError{Field: "target_changeset", Message: "required"})
	}
	switch {
	case e.Kind.IsTagLevel() && e.TargetKey == "":
		errs = append(errs, FieldError{Field: "target_key", Message: "required for tag-level decisions"})
	case e.Kind.IsDocLevel() && e.TargetKey != "":
		errs = append(errs, FieldError{Field: "target_key", Message: "not allowed for document-level decisions"})
	}
	if e.Reviewer == "" {
		errs = append(errs, FieldError{Field: "reviewer", Message: "required"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// precedes reports whether e takes precedence over o under first-decision-wins.
func (e DecisionEdge) precedes(o DecisionEdge) bool {
	if !e.CreatedAt.Equal(o.CreatedAt) {
		return e.CreatedAt.Before(o.CreatedAt)
	}
	return compareIDs(e.ID, o.ID) < 0
}

// EffectiveDocDecision returns the earliest document-level verdict on changeset cs.
func EffectiveDocDecision(edges []DecisionEdge, cs uuid.UUID) DecisionKind {
	var (
		best  DecisionEdge
		found bool
	)
	for _, e := range edges {
		if e.TargetChangeset != cs || !e.Kind.IsDocLevel() || e.TargetKey != "" {
			continue
		}
		if !found || e.precedes(best) {
			best, found = e, true
		}
	}
	if !found {
		return DecisionNone
	}
	return best.Kind
}

// EffectiveTagDecision returns the earliest key-level verdict on (cs, key).
func EffectiveTagDecision(edges []DecisionEdge, cs uuid.UUID, key string) DecisionKind {
	var (
		best  DecisionEdge
		found bool
	)
	for _, e := range edges {
		if e.TargetChangeset != cs || !e.Kind.IsTagLevel() || e.TargetKey != key {
			continue
		}
		if !found || e.precedes(best) {
			best, found = e, true
		}
	}
	if !found {
		return DecisionNone
	}
	return best.Kind
}

// Admissible reports whether a fact is visible given the effective document
// and key decisions: it needs an explicit approval at either granularity and
// no rejection at either.
func Admissible(doc, tag DecisionKind) bool {
	if doc == DecisionRejected || doc == DecisionDeleted {
		return false
	}
	if tag == DecisionRejectedTag {
		return false
	}
	return doc == DecisionApproved || tag == DecisionApprovedTag
}

type tagTarget struct {
	changeset uuid.UUID
	key       string
}

// Decisions indexes the effective verdicts of a set of edges.
type Decisions struct {
	doc map[uuid.UUID]DecisionEdge
	tag map[tagTarget]DecisionEdge
}

// NewDecisions resolves edges into effective verdicts in a single pass.
// Malformed edges are returned separately and take no part in resolution.
func NewDecisions(edges []DecisionEdge) (*Decisions, []DecisionEdge) {
	d := &Decisions{
		doc: make(map[uuid.UUID]DecisionEdge),
		tag: make(map[tagTarget]DecisionEdge),
	}
	var invalid []DecisionEdge
	for _, e := range edges {
		if e.Validate() != nil {
			invalid = append(invalid, e)
			continue
		}
		if e.Kind.IsDocLevel() {
			if cur, ok := d.doc[e.TargetChangeset]; !ok || e.precedes(cur) {
				d.doc[e.TargetChangeset] = e
			}
			continue
		}
		t := tagTarget{changeset: e.TargetChangeset, key: e.TargetKey}
		if cur, ok := d.tag[t]; !ok || e.precedes(cur) {
			d.tag[t] = e
		}
	}
	return d, invalid
}

// Doc returns the effective document-level decision for cs.
func (d *Decisions) Doc(cs uuid.UUID) DecisionKind {
	if e, ok := d.doc[cs]; ok {
		return e.Kind
	}
	return DecisionNone
}

// Tag returns the effective key-level decision for (cs, key).
func (d *Decisions) Tag(cs uuid.UUID, key string) DecisionKind {
	if e, ok := d.tag[tagTarget{changeset: cs, key: key}]; ok {
		return e.Kind
	}
	return DecisionNone
}

// Admissible reports whether (cs, key) may appear in a projection.
func (d *Decisions) Admissible(cs uuid.UUID, key string) bool {
	return Admissible(d.Doc(cs), d.Tag(cs, key))
}

// Targets returns every changeset id referenced by an indexed edge.
func (d *Decisions) Targets() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(d.doc))
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for id := range d.doc {
		add(id)
	}
	for t := range d.tag {
		add(t.changeset)
	}
	return out
}

func compareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
