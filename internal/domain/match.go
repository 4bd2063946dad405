package domain

import "github.com/google/uuid"

// GeoBox is an inclusive latitude/longitude rectangle.
type GeoBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether the point lies inside the box.
func (b GeoBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BoxAround returns the box of half-width tol around a point.
func BoxAround(lat, lon, tol float64) GeoBox {
	return GeoBox{MinLat: lat - tol, MaxLat: lat + tol, MinLon: lon - tol, MaxLon: lon + tol}
}

// MatchQuery selects candidate places that share at least one of Tags or
// lie inside Geo. With All set every tag must be shared instead. A value
// matches any value that is Same as it. Limit caps the number of
// distinct places returned; zero means no limit.
type MatchQuery struct {
	Tags  Tags
	All   bool
	Geo   *GeoBox
	Limit int
}

// Empty reports whether the query can match nothing.
func (q MatchQuery) Empty() bool {
	return len(q.Tags) == 0 && q.Geo == nil
}

// Matches reports whether tags satisfy the query.
func (q MatchQuery) Matches(tags Tags) bool {
	if q.All && len(q.Tags) > 0 {
		all := true
		for k, v := range q.Tags {
			if tv, ok := tags[k]; !ok || !tv.Same(v) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	} else {
		for k, v := range q.Tags {
			if tv, ok := tags[k]; ok && tv.Same(v) {
				return true
			}
		}
	}
	if q.Geo != nil {
		if lat, lon, ok := Coordinates(tags); ok && q.Geo.Contains(lat, lon) {
			return true
		}
	}
	return false
}

// Resolution sources.
const (
	SourceSnapshot = "snapshot"
	SourceLedger   = "ledger"
	SourceNew      = "new"
)

// Resolution is the outcome of entity resolution. Matched is false when a
// fresh id was minted; Score and Criteria describe the winning candidate
// otherwise.
type Resolution struct {
	EntityID uuid.UUID
	Matched  bool
	Score    int
	Criteria []string
	Source   string
}
