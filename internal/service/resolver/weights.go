package resolver

import "github.com/heartmarshall/gazetteer-backend/internal/config"

// Default scoring policy. A candidate needs MatchFloor points to be merged;
// a single reference id match reaches it, coordinates alone do not.
const (
	WeightExternalID = 1000
	WeightReference  = 6
	WeightGeo        = 5
	WeightAddress    = 5
	WeightWikipedia  = 4
	WeightContact    = 4
	WeightName       = 3

	MatchFloor   = 6
	GeoTolerance = 1e-5

	DefaultCandidateLimit = 200
)

// Weights is the tunable scoring policy.
type Weights struct {
	ExternalID   int
	Reference    int
	Geo          int
	Address      int
	Wikipedia    int
	Contact      int
	Name         int
	Floor        int
	GeoTolerance float64
}

// DefaultWeights returns the built-in policy.
func DefaultWeights() Weights {
	return Weights{
		ExternalID:   WeightExternalID,
		Reference:    WeightReference,
		Geo:          WeightGeo,
		Address:      WeightAddress,
		Wikipedia:    WeightWikipedia,
		Contact:      WeightContact,
		Name:         WeightName,
		Floor:        MatchFloor,
		GeoTolerance: GeoTolerance,
	}
}

// WeightsFromConfig builds the policy from configuration.
func WeightsFromConfig(cfg config.ResolverConfig) Weights {
	return Weights{
		ExternalID:   cfg.ExternalIDWeight,
		Reference:    cfg.ReferenceWeight,
		Geo:          cfg.GeoWeight,
		Address:      cfg.AddressWeight,
		Wikipedia:    cfg.WikipediaWeight,
		Contact:      cfg.ContactWeight,
		Name:         cfg.NameWeight,
		Floor:        cfg.MatchFloor,
		GeoTolerance: cfg.GeoTolerance,
	}
}
