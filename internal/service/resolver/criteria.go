package resolver

import (
	"math"
	"strings"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

// Criterion names reported in a Resolution.
const (
	CriterionExternalID = "external_id"
	CriterionReference  = "reference"
	CriterionGeo        = "geo"
	CriterionAddress    = "address"
	CriterionWikipedia  = "wikipedia"
	CriterionContact    = "contact"
	CriterionName       = "name"
)

var referenceKeys = map[string]bool{
	"wikidata":        true,
	"iata":            true,
	"icao":            true,
	"faa":             true,
	"gnis:feature_id": true,
}

const refPrefix = "ref:"

var contactKeys = map[string]bool{
	"website":   true,
	"phone":     true,
	"email":     true,
	"fax":       true,
	"facebook":  true,
	"instagram": true,
	"twitter":   true,
	"mastodon":  true,
	"vk":        true,
}

const contactPrefix = "contact:"

var nameKeys = map[string]bool{
	"name":          true,
	"official_name": true,
	"short_name":    true,
	"alt_name":      true,
}

func isReferenceKey(k string) bool {
	return referenceKeys[k] || (strings.HasPrefix(k, refPrefix) && len(k) > len(refPrefix))
}

// contactKey returns the canonical contact key, so "website" and
// "contact:website" compare as the same field.
func contactKey(k string) (string, bool) {
	if rest, ok := strings.CutPrefix(k, contactPrefix); ok {
		return rest, rest != ""
	}
	if contactKeys[k] {
		return k, true
	}
	return "", false
}

// isNameKey accepts the base name keys and their ":<lang>" variants.
func isNameKey(k string) bool {
	base, lang, found := strings.Cut(k, ":")
	if !nameKeys[base] {
		return false
	}
	return !found || lang != ""
}

// Score sums the contributions of every criterion group that matches.
// Each group contributes at most once.
func Score(w Weights, facts, candidate domain.Tags) (int, []string) {
	var (
		total    int
		criteria []string
	)
	add := func(ok bool, weight int, name string) {
		if ok {
			total += weight
			criteria = append(criteria, name)
		}
	}

	add(equalKey(facts, candidate, domain.KeyOSMID), w.ExternalID, CriterionExternalID)
	add(anyEqual(facts, candidate, isReferenceKey), w.Reference, CriterionReference)
	add(nearby(facts, candidate, w.GeoTolerance), w.Geo, CriterionGeo)
	add(addressEqual(facts, candidate), w.Address, CriterionAddress)
	add(equalKey(facts, candidate, domain.KeyWikipedia), w.Wikipedia, CriterionWikipedia)
	add(contactEqual(facts, candidate), w.Contact, CriterionContact)
	add(anyEqual(facts, candidate, isNameKey), w.Name, CriterionName)

	return total, criteria
}

func equalKey(facts, candidate domain.Tags, key string) bool {
	fv, ok := facts[key]
	if !ok {
		return false
	}
	cv, ok := candidate[key]
	return ok && fv.Same(cv)
}

func anyEqual(facts, candidate domain.Tags, match func(string) bool) bool {
	for k, fv := range facts {
		if !match(k) {
			continue
		}
		if cv, ok := candidate[k]; ok && fv.Same(cv) {
			return true
		}
	}
	return false
}

func nearby(facts, candidate domain.Tags, tol float64) bool {
	flat, flon, ok := domain.Coordinates(facts)
	if !ok {
		return false
	}
	clat, clon, ok := domain.Coordinates(candidate)
	if !ok {
		return false
	}
	return math.Abs(flat-clat) <= tol && math.Abs(flon-clon) <= tol
}

// addressEqual requires every addr:* key of the facts to be present and equal.
func addressEqual(facts, candidate domain.Tags) bool {
	seen := false
	for k, fv := range facts {
		if !strings.HasPrefix(k, domain.AddrPrefix) {
			continue
		}
		seen = true
		cv, ok := candidate[k]
		if !ok || !fv.Same(cv) {
			return false
		}
	}
	return seen
}

func contactEqual(facts, candidate domain.Tags) bool {
	want := contacts(facts)
	if len(want) == 0 {
		return false
	}
	for k, cv := range candidate {
		ck, ok := contactKey(k)
		if !ok {
			continue
		}
		for _, fv := range want[ck] {
			if fv.Same(cv) {
				return true
			}
		}
	}
	return false
}

func contacts(tags domain.Tags) map[string][]domain.Value {
	out := make(map[string][]domain.Value)
	for k, v := range tags {
		if ck, ok := contactKey(k); ok {
			out[ck] = append(out[ck], v)
		}
	}
	return out
}

// matchQueries builds one candidate search per criterion group the facts can
// satisfy. Each search is limited on its own, so places sharing a common name
// cannot crowd out a place found through a reference id.
func matchQueries(facts domain.Tags, tol float64, limit int) []domain.MatchQuery {
	var (
		external  = make(domain.Tags)
		reference = make(domain.Tags)
		address   = make(domain.Tags)
		wikipedia = make(domain.Tags)
		contact   = make(domain.Tags)
		name      = make(domain.Tags)
	)
	for k, v := range facts {
		switch {
		case k == domain.KeyOSMID:
			external[k] = v
		case k == domain.KeyWikipedia:
			wikipedia[k] = v
		case isReferenceKey(k):
			reference[k] = v
		case isNameKey(k):
			name[k] = v
		case strings.HasPrefix(k, domain.AddrPrefix):
			address[k] = v
		default:
			if ck, ok := contactKey(k); ok {
				contact[ck] = v
				contact[contactPrefix+ck] = v
			}
		}
	}

	var out []domain.MatchQuery
	for _, group := range []domain.Tags{external, reference, wikipedia, contact, name} {
		if len(group) > 0 {
			out = append(out, domain.MatchQuery{Tags: group, Limit: limit})
		}
	}
	if len(address) > 0 {
		out = append(out, domain.MatchQuery{Tags: address, All: true, Limit: limit})
	}
	if lat, lon, ok := domain.Coordinates(facts); ok {
		box := domain.BoxAround(lat, lon, tol)
		out = append(out, domain.MatchQuery{Geo: &box, Limit: limit})
	}
	return out
}
