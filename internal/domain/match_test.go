package domain

import "testing"

func TestMatchQuery_Matches(t *testing.T) {
	t.Parallel()

	box := BoxAround(10, 20, 1e-5)
	tests := []struct {
		name string
		q    MatchQuery
		tags Tags
		want bool
	}{
		{
			name: "any tag",
			q:    MatchQuery{Tags: Tags{"wikidata": String("Q1"), "name": String("A")}},
			tags: Tags{"name": String("A")},
			want: true,
		},
		{
			name: "textual identifier",
			q:    MatchQuery{Tags: Tags{"osm_id": String("42")}},
			tags: Tags{"osm_id": Number(42)},
			want: true,
		},
		{
			name: "all tags required",
			q:    MatchQuery{Tags: Tags{"addr:street": String("Main"), "addr:housenumber": String("5")}, All: true},
			tags: Tags{"addr:street": String("Main")},
			want: false,
		},
		{
			name: "all tags present",
			q:    MatchQuery{Tags: Tags{"addr:street": String("Main"), "addr:housenumber": String("5")}, All: true},
			tags: Tags{"addr:street": String("Main"), "addr:housenumber": Number(5)},
			want: true,
		},
		{
			name: "inside geo box",
			q:    MatchQuery{Geo: &box},
			tags: Tags{"lat": Number(10), "lon": Number(20)},
			want: true,
		},
		{
			name: "no overlap",
			q:    MatchQuery{Tags: Tags{"wikidata": String("Q1")}, Geo: &box},
			tags: Tags{"wikidata": String("Q2"), "lat": Number(11), "lon": Number(20)},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.q.Matches(tt.tags); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
