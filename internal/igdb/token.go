package igdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/backlogd/backlogd/internal/config"
)

const (
	// tokenExpiryBuffer is subtracted from the lifetime Twitch reports.
	tokenExpiryBuffer   = 10 * time.Minute
	defaultTokenTimeout = 15 * time.Second
)

// Token is an app access token and the time it stops being used.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenCache stores the current app access token.
type TokenCache interface {
	Load() (Token, bool)
	Store(Token)
	Clear()
}

// MemoryTokenCache is a TokenCache held in process memory.
type MemoryTokenCache struct {
	mu    sync.RWMutex
	token *Token
	clock clockwork.Clock
}

// NewMemoryTokenCache creates an empty cache judging expiry by clock.
func NewMemoryTokenCache(clock clockwork.Clock) *MemoryTokenCache {
	return &MemoryTokenCache{clock: clock}
}

// Load returns the cached token if it has not expired.
func (c *MemoryTokenCache) Load() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil || !c.clock.Now().Before(c.token.ExpiresAt) {
		return Token{}, false
	}
	return *c.token, true
}

// Store replaces the cached token.
func (c *MemoryTokenCache) Store(t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = &t
}

// Clear drops the cached token.
func (c *MemoryTokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// TokenSource issues Twitch app access tokens via the client-credentials
// grant and caches them until shortly before they expire.
type TokenSource struct {
	httpClient *http.Client
	config     config.IGDBConfig
	cache      TokenCache
	clock      clockwork.Clock
	group      singleflight.Group
	logger     zerolog.Logger
}

// NewTokenSource creates a token source.
func NewTokenSource(cfg config.IGDBConfig, cache TokenCache, clock clockwork.Clock, logger zerolog.Logger) *TokenSource {
	return &TokenSource{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		cache:  cache,
		clock:  clock,
		logger: logger.With().Str("component", "twitch-token").Logger(),
	}
}

// Token returns a valid access token, requesting a new one when the cached
// token is missing or expired. Concurrent callers share one request, which
// outlives any single caller's cancellation; each caller still returns as
// soon as its own ctx is done.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if t, ok := s.cache.Load(); ok {
		return t.AccessToken, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		if t, ok := s.cache.Load(); ok {
			return t.AccessToken, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()

		t, err := s.fetch(fetchCtx)
		if err != nil {
			return "", err
		}
		s.cache.Store(t)
		return t.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *TokenSource) fetchTimeout() time.Duration {
	if s.config.Timeout > 0 {
		return time.Duration(s.config.Timeout) * time.Second
	}
	return defaultTokenTimeout
}

// Invalidate forgets the cached token so the next call fetches a new one.
func (s *TokenSource) Invalidate() {
	s.cache.Clear()
}

func (s *TokenSource) fetch(ctx context.Context) (Token, error) {
	if !s.config.HasCredentials() {
		return Token{}, ErrCredentialsMissing
	}

	form := url.Values{}
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("%w: %s", ErrTokenRequest, resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access token", ErrTokenRequest)
	}

	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryBuffer)
	if expiresAt.Before(now) {
		expiresAt = now
	}

	s.logger.Debug().
		Int64("expiresIn", tr.ExpiresIn).
		Time("expiresAt", expiresAt).
		Msg("Obtained app access token")

	return Token{AccessToken: tr.AccessToken, ExpiresAt: expiresAt}, nil
}
