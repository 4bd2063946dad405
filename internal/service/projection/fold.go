package projection

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Row is one flattened fact: a single key/value pair of a changeset.
type Row struct {
	Changeset uuid.UUID
	Key       string
	Value     domain.Value
	CreatedAt time.Time
}

// before orders rows by (CreatedAt, Changeset).
func (r Row) before(o Row) int {
	if c := r.CreatedAt.Compare(o.CreatedAt); c != 0 {
		return c
	}
	return slices.Compare(r.Changeset[:], o.Changeset[:])
}

// Flatten expands changesets into rows sorted by (CreatedAt, Changeset, Key).
func Flatten(changesets []domain.Changeset) []Row {
	n := 0
	for _, cs := range changesets {
		n += len(cs.Tags)
	}
	rows := make([]Row, 0, n)
	for _, cs := range changesets {
		for _, k := range cs.Tags.Keys() {
			rows = append(rows, Row{
				Changeset: cs.ID,
				Key:       k,
				Value:     cs.Tags[k],
				CreatedAt: cs.CreatedAt,
			})
		}
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := a.before(b); c != 0 {
			return c
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
	return rows
}

// FilterAdmissible drops rows whose (changeset, key) is not admissible.
// The input order is preserved.
func FilterAdmissible(rows []Row, d *domain.Decisions) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if d.Admissible(r.Changeset, r.Key) {
			out = append(out, r)
		}
	}
	return out
}

// ReduceLatest keeps, per key, the row with the greatest (CreatedAt, Changeset).
// rows must be sorted as Flatten returns them.
func ReduceLatest(rows []Row) domain.Tags {
	tags := make(domain.Tags, len(rows))
	for _, r := range rows {
		tags[r.Key] = r.Value
	}
	return tags
}

// Project folds an entity's changesets and their decision edges into the
// snapshot tag set. Malformed edges are returned for the caller to report.
func Project(changesets []domain.Changeset, edges []domain.DecisionEdge) (domain.Tags, []domain.DecisionEdge) {
	decisions, invalid := domain.NewDecisions(edges)
	rows := FilterAdmissible(Flatten(changesets), decisions)
	return ReduceLatest(rows), invalid
}
