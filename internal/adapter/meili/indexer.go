// Package meili feeds projected snapshots into a Meilisearch index used by
// downstream search. The index is a derived read model; it can always be
// rebuilt from the snapshot table.
package meili

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

const healthInterval = 10 * time.Second

var (
	filterableAttributes = []string{"_geo", "keys"}
	searchableAttributes = []string{"name", "names", "address"}
)

// Indexer writes snapshots to one Meilisearch index.
type Indexer struct {
	client  meili.ServiceManager
	index   string
	healthy atomic.Bool
	done    chan struct{}
	log     *slog.Logger
}

// New creates an indexer and configures the index. An unreachable server is
// not fatal: the indexer reports unhealthy and reconfigures on recovery.
func New(log *slog.Logger, url, apiKey, index string) *Indexer {
	i := &Indexer{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		index:  index,
		done:   make(chan struct{}),
		log:    log.With("adapter", "meili", "index", index),
	}

	if _, err := i.client.Health(); err != nil {
		i.log.Warn("meilisearch unavailable", slog.String("url", url), slog.String("error", err.Error()))
	} else {
		i.healthy.Store(true)
		i.configure()
	}

	go i.healthLoop()
	return i
}

func (i *Indexer) configure() {
	if _, err := i.client.CreateIndex(&meili.IndexConfig{Uid: i.index, PrimaryKey: "id"}); err != nil {
		i.log.Debug("create index (may already exist)", slog.String("error", err.Error()))
	}

	idx := i.client.Index(i.index)
	filterable := make([]interface{}, len(filterableAttributes))
	for n, v := range filterableAttributes {
		filterable[n] = v
	}
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		i.log.Warn("update filterable attributes", slog.String("error", err.Error()))
	}
	searchable := append([]string(nil), searchableAttributes...)
	if _, err := idx.UpdateSearchableAttributes(&searchable); err != nil {
		i.log.Warn("update searchable attributes", slog.String("error", err.Error()))
	}
}

func (i *Indexer) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.done:
			return
		case <-ticker.C:
			_, err := i.client.Health()
			was := i.healthy.Load()
			i.healthy.Store(err == nil)
			if err == nil && !was {
				i.log.Info("meilisearch recovered, reconfiguring index")
				i.configure()
			}
		}
	}
}

// Close stops the health monitor.
func (i *Indexer) Close() {
	close(i.done)
}

// Healthy reports whether Meilisearch answered the last health check.
func (i *Indexer) Healthy() bool {
	return i.healthy.Load()
}

// Ping reports an error when the index is unhealthy.
func (i *Indexer) Ping(context.Context) error {
	if !i.healthy.Load() {
		return fmt.Errorf("meilisearch: %w", domain.ErrUnavailable)
	}
	return nil
}

// Index upserts snapshots. Snapshots with no approved tags are removed from
// the index instead.
func (i *Indexer) Index(_ context.Context, snapshots ...domain.Snapshot) error {
	if !i.healthy.Load() {
		return fmt.Errorf("meilisearch: %w", domain.ErrUnavailable)
	}

	docs := make([]Document, 0, len(snapshots))
	idx := i.client.Index(i.index)
	for _, s := range snapshots {
		if len(s.Tags) == 0 {
			if _, err := idx.DeleteDocument(s.ID.String(), nil); err != nil {
				return fmt.Errorf("delete document %s: %w", s.ID, err)
			}
			continue
		}
		docs = append(docs, ToDocument(s))
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := idx.AddDocuments(docs, nil); err != nil {
		i.healthy.Store(false)
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Search returns the ids of places matching a free-text query.
func (i *Indexer) Search(_ context.Context, query string, limit int) ([]uuid.UUID, error) {
	if !i.healthy.Load() {
		return nil, fmt.Errorf("meilisearch: %w", domain.ErrUnavailable)
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := i.client.Index(i.index).Search(query, &meili.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		i.healthy.Store(false)
		return nil, fmt.Errorf("search: %w: %w", domain.ErrUnavailable, err)
	}

	ids := make([]uuid.UUID, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if id, err := uuid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Document is the indexed form of a snapshot.
type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Names     []string       `json:"names,omitempty"`
	Address   string         `json:"address,omitempty"`
	Keys      []string       `json:"keys"`
	Tags      map[string]any `json:"tags"`
	Geo       *Geo           `json:"_geo,omitempty"`
	UpdatedAt int64          `json:"updatedAt"`
}

// Geo is Meilisearch's reserved geo point.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToDocument maps a snapshot to its search document.
func ToDocument(s domain.Snapshot) Document {
	doc := Document{
		ID:        s.ID.String(),
		Keys:      s.Tags.Keys(),
		Tags:      s.Tags.ToMap(),
		UpdatedAt: s.UpdatedAt.Unix(),
	}
	if v, ok := s.Tags["name"].Str(); ok {
		doc.Name = v
	}

	var addr []string
	for _, k := range doc.Keys {
		v, ok := s.Tags[k].Str()
		if !ok {
			continue
		}
		switch {
		case k != "name" && (strings.HasSuffix(k, "name") || strings.Contains(k, "name:")):
			doc.Names = append(doc.Names, v)
		case strings.HasPrefix(k, domain.AddrPrefix):
			addr = append(addr, v)
		}
	}
	sort.Strings(doc.Names)
	doc.Address = strings.Join(addr, ", ")

	if lat, lon, ok := domain.Coordinates(s.Tags); ok {
		doc.Geo = &Geo{Lat: lat, Lng: lon}
	}
	return doc
}
