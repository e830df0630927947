package discovery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/igdb"
)

func setupTestServer(t *testing.T, catalog *fakeCatalog, mutate ...func(*config.DiscoveryConfig)) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandlers(newTestService(t, catalog, mutate...)).RegisterRoutes(e.Group("/api/v1/igdb"))
	return e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeIDs(t *testing.T, body []byte) []int64 {
	t.Helper()
	var games []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &games))
	ids := make([]int64, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	return ids
}

func TestHandlers_ListGamesHot(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGames] = scenarioGames
	e := setupTestServer(t, catalog)

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/games?genreIds=12,31&limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{2, 1}, decodeIDs(t, rec.Body.Bytes()))
	q := catalog.lastQuery(t)
	assert.Contains(t, q, "genres = (12,31)")
	assert.Contains(t, q, "limit 8;")
}

func TestHandlers_ListGamesPresetTypes(t *testing.T) {
	tests := []struct {
		typ       string
		wantQuery string
	}{
		{"featured", "sort total_rating desc; limit 24;"},
		{"top", "sort total_rating_count desc; limit 200;"},
		{"coming-soon", "sort first_release_date asc; limit 50;"},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			catalog := newFakeCatalog()
			e := setupTestServer(t, catalog)

			rec := doRequest(e, http.MethodGet, "/api/v1/igdb/games?type="+tt.typ, "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, "[]", rec.Body.String())
			assert.Contains(t, catalog.lastQuery(t), tt.wantQuery)
		})
	}
}

func TestHandlers_ListGamesInvalidParams(t *testing.T) {
	e := setupTestServer(t, newFakeCatalog())

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/games?minRating=150", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Error   string       `json:"error"`
		Details []FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid parameters", body.Error)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "minRating", body.Details[0].Field)
}

func TestHandlers_RawQuery(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGames] = `[{"id":5,"name":"Raw"}]`

	disabled := setupTestServer(t, catalog)
	rec := doRequest(disabled, http.MethodGet, "/api/v1/igdb/games?q="+`fields%20*%3B`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	enabled := setupTestServer(t, catalog, func(c *config.DiscoveryConfig) { c.AllowRawQueries = true })
	rec = doRequest(enabled, http.MethodPost, "/api/v1/igdb/games", `{"query":"fields name; limit 1;"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":5,"name":"Raw"}]`, rec.Body.String())
	assert.Equal(t, "fields name; limit 1;", catalog.lastQuery(t))
}

func TestHandlers_QueryGamesStructured(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGames] = scenarioGames
	e := setupTestServer(t, catalog)

	rec := doRequest(e, http.MethodPost, "/api/v1/igdb/games",
		`{"minRating":80,"platformIds":[48,6],"sort":"newest","limit":150}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 2, 3}, decodeIDs(t, rec.Body.Bytes()))
	q := catalog.lastQuery(t)
	assert.Contains(t, q, "total_rating >= 80")
	assert.Contains(t, q, "platforms = (48,6)")
	assert.Contains(t, q, "sort first_release_date desc; limit 150;")
}

func TestHandlers_QueryGamesInvalidBody(t *testing.T) {
	e := setupTestServer(t, newFakeCatalog())

	rec := doRequest(e, http.MethodPost, "/api/v1/igdb/games", `{"limit":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/igdb/games", `{"limit":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetGame(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGames] = `[{"id":1942,"name":"The Witcher 3"}]`
	e := setupTestServer(t, catalog)

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/games/1942", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1942,"name":"The Witcher 3"}`, rec.Body.String())

	rec = doRequest(e, http.MethodGet, "/api/v1/igdb/games/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetGameNotFound(t *testing.T) {
	e := setupTestServer(t, newFakeCatalog())

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/games/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_Search(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGames] = scenarioGames
	e := setupTestServer(t, catalog)

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/search?q=zelda", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 3)
}

func TestHandlers_SearchFailuresAnswerEmpty(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.err = igdb.ErrAPIError
	e := setupTestServer(t, catalog)

	for _, target := range []string{"/api/v1/igdb/search?q=zelda", "/api/v1/igdb/search"} {
		rec := doRequest(e, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
	}
}

func TestHandlers_CatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not configured", igdb.ErrCredentialsMissing, http.StatusServiceUnavailable},
		{"upstream status", &igdb.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}, http.StatusBadGateway},
		{"rate limited", igdb.ErrRateLimited, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newFakeCatalog()
			catalog.err = tt.err
			e := setupTestServer(t, catalog)

			rec := doRequest(e, http.MethodGet, "/api/v1/igdb/genres", "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandlers_Taxonomies(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.responses[igdb.EndpointGenres] = `[{"id":5,"name":"Shooter"}]`
	catalog.responses[igdb.EndpointPlatforms] = `[{"id":6,"name":"PC (Microsoft Windows)","abbreviation":"PC"}]`
	e := setupTestServer(t, catalog)

	rec := doRequest(e, http.MethodGet, "/api/v1/igdb/genres", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":5,"name":"Shooter"}]`, rec.Body.String())

	rec = doRequest(e, http.MethodGet, "/api/v1/igdb/platforms", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":6,"name":"PC (Microsoft Windows)","abbreviation":"PC"}]`, rec.Body.String())
}

func TestHandlers_ClearCache(t *testing.T) {
	catalog := newFakeCatalog()
	e := setupTestServer(t, catalog)

	doRequest(e, http.MethodGet, "/api/v1/igdb/genres", "")
	rec := doRequest(e, http.MethodDelete, "/api/v1/igdb/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	doRequest(e, http.MethodGet, "/api/v1/igdb/genres", "")
	assert.Len(t, catalog.Calls(), 2)
}
