package postgres

import (
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Builder is the statement builder shared by all repositories.
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// MatchPredicate translates a MatchQuery into a WHERE clause over a table that
// has jsonb "tags" and derived "lat"/"lng" columns. Each form of each tag value becomes a
// containment test so the GIN index on tags can serve it.
func MatchPredicate(q domain.MatchQuery) (sq.Sqlizer, error) {
	or := sq.Or{}
	all := sq.And{}
	for _, k := range q.Tags.Keys() {
		forms := sq.Or{}
		for _, v := range q.Tags[k].Forms() {
			doc, err := json.Marshal(map[string]domain.Value{k: v})
			if err != nil {
				return nil, fmt.Errorf("encode match tag %q: %w", k, err)
			}
			forms = append(forms, sq.Expr("tags @> ?::jsonb", string(doc)))
		}
		if q.All {
			all = append(all, forms)
		} else {
			or = append(or, forms...)
		}
	}
	if len(all) > 0 {
		or = append(or, all)
	}
	if q.Geo != nil {
		or = append(or, sq.And{
			sq.Expr("lat BETWEEN ? AND ?", q.Geo.MinLat, q.Geo.MaxLat),
			sq.Expr("lng BETWEEN ? AND ?", q.Geo.MinLon, q.Geo.MaxLon),
		})
	}
	if len(or) == 0 {
		return sq.Expr("FALSE"), nil
	}
	return or, nil
}

// Coordinates returns nullable lat/lng column values for tags.
func Coordinates(tags domain.Tags) (lat, lng *float64) {
	la, lo, ok := domain.Coordinates(tags)
	if !ok {
		return nil, nil
	}
	return &la, &lo
}
