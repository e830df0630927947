package igdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backlogd/backlogd/internal/config"
)

type fakeTokens struct {
	issued      atomic.Int32
	invalidated atomic.Int32
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	return fmt.Sprintf("token-%d", f.issued.Add(1)), nil
}

func (f *fakeTokens) Invalidate() {
	f.invalidated.Add(1)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeTokens) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &fakeTokens{}
	client := NewClient(testIGDBConfig("", srv.URL), tokens, zerolog.Nop())
	client.SetRetryDelay(time.Millisecond)
	return client, tokens
}

func TestClient_Query(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/games", r.URL.Path)
		assert.Equal(t, "client-id", r.Header.Get("Client-ID"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "fields id,name; limit 2; offset 0;", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1942,"name":"The Witcher 3"},{"id":1020,"name":"GTA V"}]`))
	})

	var out []GameRecord
	err := client.Query(context.Background(), EndpointGames, "fields id,name; limit 2; offset 0;", &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1942), out[0].ID)
	assert.Equal(t, "GTA V", out[1].Name)
}

func TestClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	var out []GameRecord
	require.NoError(t, client.Query(context.Background(), EndpointGames, "fields id;", &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	err := client.Query(context.Background(), EndpointGames, "fields id;", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPIError)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClient_DoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `[{"title":"Syntax Error"}]`, http.StatusBadRequest)
	})

	err := client.Query(context.Background(), EndpointGames, "fields;", nil)
	assert.ErrorIs(t, err, ErrAPIError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ReauthorizesOnce(t *testing.T) {
	var calls atomic.Int32
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":7}]`))
	})

	var out []GameRecord
	require.NoError(t, client.Query(context.Background(), EndpointGames, "fields id;", &out))
	assert.Equal(t, int64(7), out[0].ID)
	assert.Equal(t, int32(1), tokens.invalidated.Load())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_PersistentUnauthorized(t *testing.T) {
	var calls atomic.Int32
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := client.Query(context.Background(), EndpointGames, "fields id;", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), tokens.invalidated.Load())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ReauthorizesWithoutRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case r.Header.Get("Authorization") == "Bearer token-1":
			w.WriteHeader(http.StatusUnauthorized)
		case n == 2:
			_, _ = w.Write([]byte(`[{"id":7}]`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := testIGDBConfig("", srv.URL)
	cfg.MaxRetries = 0
	tokens := &fakeTokens{}
	client := NewClient(cfg, tokens, zerolog.Nop())
	client.SetRetryDelay(time.Millisecond)

	var out []GameRecord
	require.NoError(t, client.Query(context.Background(), EndpointGames, "fields id;", &out))
	assert.Equal(t, int64(7), out[0].ID)
	assert.Equal(t, int32(1), tokens.invalidated.Load())

	// Transient failures get no retry at all.
	err := client.Query(context.Background(), EndpointGames, "fields id;", nil)
	assert.ErrorIs(t, err, ErrAPIError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient(config.IGDBConfig{RequestsPerSecond: 4}, &fakeTokens{}, zerolog.Nop())

	assert.False(t, client.IsConfigured())
	assert.ErrorIs(t, client.Query(context.Background(), EndpointGames, "fields id;", nil), ErrCredentialsMissing)
}

func TestClient_Test(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "fields id; limit 1;", string(body))
		_, _ = w.Write([]byte(`[{"id":1}]`))
	})

	assert.NoError(t, client.Test(context.Background()))
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/co1wyy.jpg", CoverURL("co1wyy"))
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_thumb/co1wyy.jpg", ImageURL("co1wyy", SizeThumb))
	assert.Equal(t, PlaceholderCover, CoverURL(""))
}
