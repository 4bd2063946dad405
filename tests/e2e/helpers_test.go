//go:build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/gazetteer-backend/internal/adapter/memory"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/changeset"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/decision"
	snapshotrepo "github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/snapshot"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/gazetteer-backend/internal/config"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/internal/service/ledger"
	"github.com/heartmarshall/gazetteer-backend/internal/service/projection"
	"github.com/heartmarshall/gazetteer-backend/internal/service/resolver"
	"github.com/heartmarshall/gazetteer-backend/internal/service/snapshot"
	"github.com/heartmarshall/gazetteer-backend/internal/transport/middleware"
	"github.com/heartmarshall/gazetteer-backend/internal/transport/rest"
)

const adminToken = "e2e-admin-token"

type testServer struct {
	URL       string
	Client    *http.Client
	Pool      *pgxpool.Pool
	Scheduler *projection.Scheduler
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// setupTestServer wires the full HTTP stack over a migrated PostgreSQL
// container. The scheduler is not started; tests call flush to apply
// pending recomputes deterministically.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	pcfg := config.ProjectionConfig{Workers: 4, QueueSize: 256, PageSize: 50}
	changesets := changeset.New(pool)
	decisions := decision.New(pool)
	snapshots := snapshotrepo.New(pool)
	cache := memory.NewSnapshotCache()

	engine := projection.NewEngine(logger, changesets, decisions, snapshots,
		postgres.NewTxManager(pool), postgres.NewEntityLocker(pool), pcfg, projection.WithCache(cache))
	scheduler := projection.NewScheduler(logger, engine, pcfg)
	res := resolver.NewService(logger, snapshots, changesets, decisions, resolver.DefaultWeights(), 0)
	ledgerSvc := ledger.NewService(logger, changesets, decisions, res, scheduler, domain.TrimNormalizer)
	reader := snapshot.NewService(logger, snapshots, cache)

	limiter := middleware.NewRateLimiter(time.Minute)
	t.Cleanup(limiter.Stop)

	handler := rest.NewRouter(logger, rest.Handlers{
		Health: rest.NewHealthHandler(pool, "e2e"),
		Ledger: rest.NewLedgerHandler(ledgerSvc, logger),
		Places: rest.NewPlacesHandler(reader, nil, res, logger),
		Admin:  rest.NewAdminHandler(engine, scheduler, logger),
	}, rest.RouterConfig{
		Server: config.ServerConfig{WriteRateLimit: 10000, AdminToken: adminToken},
		CORS: config.CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET,POST,OPTIONS",
			AllowedHeaders: "Content-Type,X-Actor,X-Request-Id,X-Admin-Token",
		},
	}, limiter)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:       srv.URL,
		Client:    &http.Client{Timeout: 30 * time.Second},
		Pool:      pool,
		Scheduler: scheduler,
	}
}

// do sends a JSON request. Headers are given as name/value pairs.
func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (ts *testServer) submit(t *testing.T, body map[string]any) submitResp {
	t.Helper()
	code, raw := ts.do(t, http.MethodPost, "/changesets", body, middleware.ActorHeader, "mapper:e2e")
	require.Equal(t, http.StatusCreated, code, string(raw))
	return decode[submitResp](t, raw)
}

func (ts *testServer) decide(t *testing.T, kind string, cs uuid.UUID, key string) {
	t.Helper()
	body := map[string]any{"kind": kind, "changeset": cs}
	if key != "" {
		body["key"] = key
	}
	code, raw := ts.do(t, http.MethodPost, "/decisions", body, middleware.ActorHeader, "moderator:e2e")
	require.Equal(t, http.StatusCreated, code, string(raw))
}

// flush drains every queued recompute.
func (ts *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for ts.Scheduler.Len() > 0 {
		res := ts.Scheduler.Flush(ctx)
		require.NoError(t, res.Err())
		if res.Processed == 0 {
			break
		}
	}
}

func (ts *testServer) place(t *testing.T, id uuid.UUID) (int, placeResp) {
	t.Helper()
	code, raw := ts.do(t, http.MethodGet, "/places/"+id.String(), nil)
	if code != http.StatusOK {
		return code, placeResp{}
	}
	return code, decode[placeResp](t, raw)
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type resolutionResp struct {
	EntityID uuid.UUID `json:"entityId"`
	Matched  bool      `json:"matched"`
	Score    int       `json:"score"`
	Criteria []string  `json:"criteria"`
	Source   string    `json:"source"`
}

type submitResp struct {
	Changeset struct {
		ID       uuid.UUID      `json:"id"`
		EntityID uuid.UUID      `json:"entityId"`
		Tags     map[string]any `json:"tags"`
	} `json:"changeset"`
	Resolution *resolutionResp `json:"resolution"`
}

type placeResp struct {
	ID        uuid.UUID      `json:"id"`
	Tags      map[string]any `json:"tags"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// uniq returns a value no other test run will submit.
func uniq(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
