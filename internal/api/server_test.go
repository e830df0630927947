package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/logger"
	"github.com/backlogd/backlogd/internal/testutil"
)

type catalogStub struct {
	gameCalls atomic.Int32
}

func (c *catalogStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/games":
		c.gameCalls.Add(1)
		if strings.Contains(string(body), "where id = (1942)") {
			fmt.Fprint(w, `[{"id":1942,"name":"The Witcher 3","summary":"Geralt.","cover":{"image_id":"co1wyy"}}]`)
			return
		}
		fmt.Fprint(w, `[{"id":1,"name":"A","total_rating":80,"total_rating_count":10},{"id":2,"name":"B","total_rating":90,"total_rating_count":5000}]`)
	case "/genres":
		fmt.Fprint(w, `[{"id":12,"name":"Role-playing (RPG)"}]`)
	default:
		fmt.Fprint(w, `[]`)
	}
}

type staticLogs struct {
	path string
}

func (s staticLogs) GetRecentLogs() []logger.LogEntry { return nil }
func (s staticLogs) GetLogFilePath() string            { return s.path }

func setupTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *catalogStub) {
	t.Helper()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600,"token_type":"bearer"}`)
	}))
	t.Cleanup(tokenSrv.Close)

	stub := &catalogStub{}
	catalogSrv := httptest.NewServer(stub)
	t.Cleanup(catalogSrv.Close)

	cfg := config.Default()
	cfg.IGDB.ClientID = "client-id"
	cfg.IGDB.ClientSecret = "client-secret"
	cfg.IGDB.TokenURL = tokenSrv.URL
	cfg.IGDB.BaseURL = catalogSrv.URL
	cfg.IGDB.RequestsPerSecond = 1000
	for _, m := range mutate {
		m(cfg)
	}

	tdb := testutil.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	srv, err := NewServer(tdb.DB, cfg, clock, tdb.Logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.rateLimiter.Stop()
		srv.discoveryCache.Stop()
	})

	return srv, stub
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	srv, _ := setupTestServer(t)
	require.NoError(t, srv.db.Close())

	rec := doRequest(srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetStatus(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["catalogConfigured"])
	assert.Equal(t, float64(1), status["schemaVersion"])
	assert.Equal(t, float64(0), status["libraryCount"])
	assert.Equal(t, "2025-06-15T12:00:00Z", status["startTime"])
}

func TestDiscoveryRoutes(t *testing.T) {
	srv, stub := setupTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/igdb/games", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var games []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &games))
	require.Len(t, games, 2)
	assert.Equal(t, int64(2), games[0].ID)

	// Second request is served from the cache.
	doRequest(srv, http.MethodGet, "/api/v1/igdb/games", "")
	assert.Equal(t, int32(1), stub.gameCalls.Load())

	rec = doRequest(srv, http.MethodGet, "/api/v1/igdb/genres", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":12,"name":"Role-playing (RPG)"}]`, rec.Body.String())

	rec = doRequest(srv, http.MethodGet, "/api/v1/igdb/games?sort=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiscoveryRoutes_RateLimited(t *testing.T) {
	srv, _ := setupTestServer(t, func(c *config.Config) {
		c.RateLimit.RequestsPerMinute = 1
	})

	assert.Equal(t, http.StatusOK, doRequest(srv, http.MethodGet, "/api/v1/igdb/genres", "").Code)
	rec := doRequest(srv, http.MethodGet, "/api/v1/igdb/genres", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other groups are not limited.
	assert.Equal(t, http.StatusOK, doRequest(srv, http.MethodGet, "/api/v1/status", "").Code)
}

func TestRawQueriesDisabledByDefault(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/igdb/games", `{"query":"fields *; limit 1;"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLibraryRoutes(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/v1/library/games/1942", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"coverUrl":"https://images.igdb.com/igdb/image/upload/t_cover_big/co1wyy.jpg"`)

	rec = doRequest(srv, http.MethodGet, "/api/v1/library/games", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCount":1`)
}

func TestSchedulerRoutes(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/scheduler/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "discovery-warm", tasks[0].ID)
	assert.Equal(t, "library-refresh", tasks[1].ID)

	rec = doRequest(srv, http.MethodGet, "/api/v1/scheduler/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/v1/scheduler/tasks/discovery-warm/run", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	srv.scheduler.Wait()

	rec = doRequest(srv, http.MethodGet, "/api/v1/scheduler/tasks/discovery-warm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lastRun"`)
	assert.NotContains(t, rec.Body.String(), `"lastError"`)
}

func TestLogRoutes(t *testing.T) {
	srv, _ := setupTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/system/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doRequest(srv, http.MethodGet, "/api/v1/system/logs/download", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := filepath.Join(t.TempDir(), "backlogd.log")
	require.NoError(t, os.WriteFile(path, []byte("line\n"), 0o600))
	srv.SetLogsProvider(staticLogs{path: path})

	rec = doRequest(srv, http.MethodGet, "/api/v1/system/logs/download", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "backlogd.log")
	assert.Equal(t, "line\n", rec.Body.String())
}
