package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}

	if c.Server.WriteRateLimit < 0 {
		return fmt.Errorf("server.write_rate_limit must be >= 0 (got %d)", c.Server.WriteRateLimit)
	}

	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) must not exceed max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.LockTimeout < 0 || c.Database.StatementTimeout < 0 {
		return fmt.Errorf("database timeouts must not be negative")
	}

	if err := c.Projection.validate(); err != nil {
		return fmt.Errorf("projection: %w", err)
	}

	if err := c.Resolver.validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}

	if c.Search.URL != "" {
		if _, err := url.ParseRequestURI(c.Search.URL); err != nil {
			return fmt.Errorf("search.url: %w", err)
		}
		if strings.TrimSpace(c.Search.Index) == "" {
			return fmt.Errorf("search.index must not be empty")
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	return nil
}

func (p *ProjectionConfig) validate() error {
	if p.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", p.Workers)
	}
	if p.EntityTimeout <= 0 {
		return fmt.Errorf("entity_timeout must be > 0 (got %s)", p.EntityTimeout)
	}
	if p.Debounce < 0 {
		return fmt.Errorf("debounce must be >= 0 (got %s)", p.Debounce)
	}
	if p.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be > 0 (got %d)", p.QueueSize)
	}
	if p.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0 (got %d)", p.PageSize)
	}
	return nil
}

func (r *ResolverConfig) validate() error {
	weights := map[string]int{
		"external_id_weight": r.ExternalIDWeight,
		"reference_weight":   r.ReferenceWeight,
		"geo_weight":         r.GeoWeight,
		"address_weight":     r.AddressWeight,
		"wikipedia_weight":   r.WikipediaWeight,
		"contact_weight":     r.ContactWeight,
		"name_weight":        r.NameWeight,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("%s must be >= 0 (got %d)", name, w)
		}
	}
	if r.MatchFloor <= 0 {
		return fmt.Errorf("match_floor must be > 0 (got %d)", r.MatchFloor)
	}
	if r.GeoTolerance <= 0 {
		return fmt.Errorf("geo_tolerance must be > 0 (got %v)", r.GeoTolerance)
	}
	if r.CandidateLimit <= 0 {
		return fmt.Errorf("candidate_limit must be > 0 (got %d)", r.CandidateLimit)
	}
	return nil
}
