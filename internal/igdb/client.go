package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/backlogd/backlogd/internal/config"
)

// Catalog endpoints.
const (
	EndpointGames     = "games"
	EndpointGenres    = "genres"
	EndpointPlatforms = "platforms"
)

const (
	defaultRetryDelay = 500 * time.Millisecond
	maxErrorBody      = 512
)

// TokenProvider supplies bearer tokens for catalog requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Client executes queries against the IGDB v4 API.
type Client struct {
	httpClient *http.Client
	config     config.IGDBConfig
	tokens     TokenProvider
	limiter    *rate.Limiter
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewClient creates a new IGDB client.
func NewClient(cfg config.IGDBConfig, tokens TokenProvider, logger zerolog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:     cfg,
		tokens:     tokens,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(max(rps, 1))),
		retryDelay: defaultRetryDelay,
		logger:     logger.With().Str("component", "igdb").Logger(),
	}
}

// SetRetryDelay sets the initial backoff between retries.
func (c *Client) SetRetryDelay(d time.Duration) {
	c.retryDelay = d
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "igdb"
}

// IsConfigured returns true if both Twitch credentials are set.
func (c *Client) IsConfigured() bool {
	return c.config.HasCredentials()
}

// Test verifies connectivity by fetching a single game id.
func (c *Client) Test(ctx context.Context) error {
	var out []struct {
		ID int64 `json:"id"`
	}
	return c.Query(ctx, EndpointGames, "fields id; limit 1;", &out)
}

// Query posts query to the endpoint and decodes the JSON response into out.
// Rate-limited and server-side failures are retried with backoff up to
// MaxRetries times. An unauthorized response drops the cached token and is
// retried once on top of that budget, so re-auth works with MaxRetries = 0.
func (c *Client) Query(ctx context.Context, endpoint, query string, out any) error {
	if !c.IsConfigured() {
		return ErrCredentialsMissing
	}

	reauthorized := false
	var retries uint
	retryIf := func(err error) bool {
		if !retry.IsRecoverable(err) {
			return false
		}
		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrUnauthorized):
			if reauthorized {
				return false
			}
			reauthorized = true
			c.tokens.Invalidate()
			return true
		case errors.As(err, &statusErr):
			if !statusErr.Temporary() {
				return false
			}
		default:
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				return false
			}
		}
		if retries >= c.config.MaxRetries {
			return false
		}
		retries++
		return true
	}

	body, err := retry.DoWithData(
		func() ([]byte, error) {
			return c.do(ctx, endpoint, query)
		},
		retry.Context(ctx),
		retry.Attempts(c.config.MaxRetries+2),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Uint("attempt", n+1).
				Msg("Retrying IGDB request")
		}),
	)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("IGDB query failed")
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode IGDB %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	endpointURL := strings.TrimRight(c.config.BaseURL, "/") + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(query))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Client-ID", c.config.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	c.logger.Debug().Str("endpoint", endpoint).Str("query", query).Msg("IGDB query")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("IGDB request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read IGDB response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: msg}
	}

	return body, nil
}
