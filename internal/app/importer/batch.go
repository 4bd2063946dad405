package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/internal/service/ledger"
)

// Batch is the on-disk import format:
//
//	changesets:
//	  - entity: 0190c6d2-...   # optional, resolved when absent
//	    author: osm-sync
//	    automated: true
//	    sources: https://www.openstreetmap.org/node/42
//	    approve: true          # optional, overrides Config.Approve
//	    tags:
//	      name: Brandenburger Tor
//	      lat: 52.5163
//	      lon: 13.3777
type Batch struct {
	Changesets []Item `yaml:"changesets"`
}

// Item is one changeset to submit.
type Item struct {
	Entity    string         `yaml:"entity"`
	Author    string         `yaml:"author"`
	Automated bool           `yaml:"automated"`
	Sources   string         `yaml:"sources"`
	Comment   string         `yaml:"comment"`
	Approve   *bool          `yaml:"approve"`
	Tags      map[string]any `yaml:"tags"`
}

// LoadBatch decodes a YAML batch. Unknown fields are rejected.
func LoadBatch(r io.Reader) (*Batch, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Batch
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return &b, nil
		}
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &b, nil
}

// input converts an item into a ledger submission.
func (it Item) input() (ledger.SubmitChangesetInput, error) {
	in := ledger.SubmitChangesetInput{
		AuthorTag:   it.Author,
		IsAutomated: it.Automated,
		Sources:     it.Sources,
		Comment:     it.Comment,
	}

	if s := strings.TrimSpace(it.Entity); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return in, domain.NewValidationError("entity", "invalid uuid")
		}
		in.EntityID = id
	}

	raw := make(map[string]any, len(it.Tags))
	for k, v := range it.Tags {
		// YAML resolves unquoted dates to time.Time.
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.DateOnly)
			if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 {
				v = t.Format(time.RFC3339)
			}
		}
		raw[k] = v
	}
	tags, err := domain.TagsFromMap(raw)
	if err != nil {
		return in, err
	}
	in.Tags = tags
	return in, nil
}
