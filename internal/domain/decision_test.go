package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func edge(kind DecisionKind, cs uuid.UUID, key string, sec int) DecisionEdge {
	return DecisionEdge{
		ID:              uuid.New(),
		Kind:            kind,
		TargetChangeset: cs,
		TargetKey:       key,
		Reviewer:        "mod",
		CreatedAt:       at(sec),
	}
}

func TestDecisionKind_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind     DecisionKind
		doc, tag bool
	}{
		{DecisionApproved, true, false},
		{DecisionRejected, true, false},
		{DecisionDeleted, true, false},
		{DecisionApprovedTag, false, true},
		{DecisionRejectedTag, false, true},
		{DecisionNone, false, false},
		{DecisionKind("MAYBE"), false, false},
	}
	for _, tt := range tests {
		if tt.kind.IsDocLevel() != tt.doc || tt.kind.IsTagLevel() != tt.tag {
			t.Errorf("%s: doc=%v tag=%v", tt.kind, tt.kind.IsDocLevel(), tt.kind.IsTagLevel())
		}
		if tt.kind.IsValid() != (tt.doc || tt.tag) {
			t.Errorf("%s: IsValid=%v", tt.kind, tt.kind.IsValid())
		}
	}
}

func TestDecisionEdge_Validate(t *testing.T) {
	t.Parallel()

	cs := uuid.New()
	valid := []DecisionEdge{
		edge(DecisionApproved, cs, "", 0),
		edge(DecisionRejectedTag, cs, "phone", 0),
	}
	for _, e := range valid {
		if err := e.Validate(); err != nil {
			t.Errorf("%s: unexpected error %v", e.Kind, err)
		}
	}

	invalid := []DecisionEdge{
		edge(DecisionKind("MAYBE"), cs, "", 0),
		edge(DecisionApprovedTag, cs, "", 0),
		edge(DecisionApproved, cs, "name", 0),
		edge(DecisionApproved, uuid.Nil, "", 0),
		{ID: uuid.New(), Kind: DecisionApproved, TargetChangeset: cs},
	}
	for i, e := range invalid {
		if err := e.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestEffectiveDocDecision_FirstDecisionWins(t *testing.T) {
	t.Parallel()

	cs := uuid.New()
	edges := []DecisionEdge{
		edge(DecisionRejected, cs, "", 20),
		edge(DecisionApproved, cs, "", 10),
	}
	if got := EffectiveDocDecision(edges, cs); got != DecisionApproved {
		t.Fatalf("got %s, want APPROVED", got)
	}

	edges[0].CreatedAt, edges[1].CreatedAt = at(10), at(20)
	if got := EffectiveDocDecision(edges, cs); got != DecisionRejected {
		t.Fatalf("after swap got %s, want REJECTED", got)
	}
}

func TestEffectiveDocDecision_TieBrokenByID(t *testing.T) {
	t.Parallel()

	cs := uuid.New()
	lo := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	hi := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	edges := []DecisionEdge{
		{ID: hi, Kind: DecisionApproved, TargetChangeset: cs, Reviewer: "a", CreatedAt: at(5)},
		{ID: lo, Kind: DecisionDeleted, TargetChangeset: cs, Reviewer: "b", CreatedAt: at(5)},
	}
	if got := EffectiveDocDecision(edges, cs); got != DecisionDeleted {
		t.Fatalf("got %s, want DELETED", got)
	}
}

func TestEffectiveDecisions_LevelsAreIndependent(t *testing.T) {
	t.Parallel()

	cs := uuid.New()
	edges := []DecisionEdge{
		edge(DecisionRejectedTag, cs, "phone", 1),
		edge(DecisionApproved, cs, "", 2),
		edge(DecisionApprovedTag, cs, "phone", 3),
		edge(DecisionApprovedTag, cs, "email", 4),
	}

	if got := EffectiveDocDecision(edges, cs); got != DecisionApproved {
		t.Errorf("doc = %s, want APPROVED", got)
	}
	if got := EffectiveTagDecision(edges, cs, "phone"); got != DecisionRejectedTag {
		t.Errorf("phone = %s, want REJECTED_TAG", got)
	}
	if got := EffectiveTagDecision(edges, cs, "email"); got != DecisionApprovedTag {
		t.Errorf("email = %s, want APPROVED_TAG", got)
	}
	if got := EffectiveTagDecision(edges, cs, "name"); got != DecisionNone {
		t.Errorf("name = %s, want NONE", got)
	}
	if got := EffectiveDocDecision(edges, uuid.New()); got != DecisionNone {
		t.Errorf("other changeset = %s, want NONE", got)
	}
}

func TestAdmissible(t *testing.T) {
	t.Parallel()

	tests := []struct {
		doc, tag DecisionKind
		want     bool
	}{
		{DecisionNone, DecisionNone, false},
		{DecisionApproved, DecisionNone, true},
		{DecisionApproved, DecisionApprovedTag, true},
		{DecisionApproved, DecisionRejectedTag, false},
		{DecisionNone, DecisionApprovedTag, true},
		{DecisionNone, DecisionRejectedTag, false},
		{DecisionRejected, DecisionApprovedTag, false},
		{DecisionDeleted, DecisionApprovedTag, false},
		{DecisionRejected, DecisionNone, false},
		{DecisionDeleted, DecisionNone, false},
	}
	for _, tt := range tests {
		if got := Admissible(tt.doc, tt.tag); got != tt.want {
			t.Errorf("Admissible(%s, %s) = %v, want %v", tt.doc, tt.tag, got, tt.want)
		}
	}
}

func TestDecisions_MatchesPureResolution(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	edges := []DecisionEdge{
		edge(DecisionApproved, a, "", 3),
		edge(DecisionRejected, a, "", 1),
		edge(DecisionApprovedTag, b, "name", 2),
		edge(DecisionRejectedTag, b, "name", 5),
		edge(DecisionApprovedTag, b, "", 0),
		edge(DecisionKind("BOGUS"), b, "", 0),
	}

	d, invalid := NewDecisions(edges)
	if len(invalid) != 2 {
		t.Fatalf("expected 2 invalid edges, got %d", len(invalid))
	}
	if d.Doc(a) != DecisionRejected {
		t.Errorf("Doc(a) = %s", d.Doc(a))
	}
	if d.Tag(b, "name") != DecisionApprovedTag {
		t.Errorf("Tag(b, name) = %s", d.Tag(b, "name"))
	}
	if d.Admissible(a, "name") {
		t.Error("rejected changeset must not be admissible")
	}
	if !d.Admissible(b, "name") {
		t.Error("tag-approved key must be admissible")
	}
	if d.Admissible(b, "phone") {
		t.Error("unapproved key must not be admissible")
	}
	if len(d.Targets()) != 2 {
		t.Errorf("Targets() = %v", d.Targets())
	}
}

func TestChangeset_Validate(t *testing.T) {
	t.Parallel()

	ok := Changeset{ForEntity: uuid.New(), Tags: Tags{"name": String("Cafe X")}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := Changeset{ForEntity: uuid.New()}
	if err := empty.Validate(); err == nil {
		t.Fatal("changeset without tags must be rejected")
	}

	orphan := Changeset{Tags: Tags{"name": String("X")}}
	if err := orphan.Validate(); err == nil {
		t.Fatal("changeset without entity must be rejected")
	}
}

func TestChangeset_Less(t *testing.T) {
	t.Parallel()

	lo := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	hi := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	a := Changeset{ID: hi, CreatedAt: at(1)}
	b := Changeset{ID: lo, CreatedAt: at(2)}
	c := Changeset{ID: lo, CreatedAt: at(1)}

	if !a.Less(b) || b.Less(a) {
		t.Error("earlier changeset must sort first")
	}
	if !c.Less(a) || a.Less(c) {
		t.Error("equal timestamps must sort by id")
	}
}
