package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/backlogd/backlogd/internal/apicalypse"
	"github.com/backlogd/backlogd/internal/config"
	"github.com/backlogd/backlogd/internal/igdb"
)

// Catalog executes a query against a catalog endpoint and decodes the
// result into out.
type Catalog interface {
	Query(ctx context.Context, endpoint, query string, out any) error
}

// searchFields is the projection for free-text search results.
var searchFields = []string{
	"id", "name", fieldReleaseDate, fieldRating, fieldRatingCount, fieldCategory,
	"cover.image_id", "platforms.abbreviation", "platforms.name", "alternative_names.name",
}

// detailFields is the projection for a single game page.
var detailFields = append(slices.Clone(ListingFields),
	"screenshots.image_id", "videos.video_id", "websites.url", "websites.category",
)

// Service runs discovery queries against the catalog.
type Service struct {
	catalog Catalog
	cache   *Cache
	clock   clockwork.Clock
	cfg     config.DiscoveryConfig
	limits  Limits
	logger  zerolog.Logger
}

// NewService creates a discovery service.
func NewService(catalog Catalog, cache *Cache, clock clockwork.Clock, cfg config.DiscoveryConfig, logger zerolog.Logger) *Service {
	return &Service{
		catalog: catalog,
		cache:   cache,
		clock:   clock,
		cfg:     cfg,
		limits: Limits{
			DefaultLimit:  cfg.DefaultLimit,
			MaxFetch:      cfg.MaxFetch,
			HotMultiplier: cfg.HotMultiplier,
		},
		logger: logger.With().Str("component", "discovery").Logger(),
	}
}

// Discover lists games matching c. Hot listings are re-ranked and cut to
// the page size; other sorts are returned in catalog order.
func (s *Service) Discover(ctx context.Context, c Criteria) ([]Game, error) {
	q := s.limits.Build(c, s.clock.Now())

	games, err := s.fetchGames(ctx, q.Text, false)
	if err != nil {
		return nil, err
	}

	if !q.Rerank {
		return games, nil
	}

	s.logger.Debug().
		Int("fetched", len(games)).
		Int("pageSize", q.PageSize).
		Int("offset", q.Offset).
		Msg("Re-ranking hot listing")

	// The catalog already applied the offset to the over-fetched window.
	return Page(Rank(games), 0, q.PageSize), nil
}

// Search returns the hottest matches for term among games that are not
// versions of another game. A blank term yields no results.
func (s *Service) Search(ctx context.Context, term string) ([]Game, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []Game{}, nil
	}

	query := apicalypse.New(searchFields...).
		Search(term).
		Where(apicalypse.IsNull(fieldVersionOf)).
		Limit(s.cfg.SearchPool).
		Build()

	games, err := s.fetchGames(ctx, query, false)
	if err != nil {
		return nil, err
	}
	return TopK(Rank(games), s.cfg.SearchTopK), nil
}

// Featured returns the best rated games released in the current year.
func (s *Service) Featured(ctx context.Context) ([]Game, error) {
	return s.featured(ctx, false)
}

func (s *Service) featured(ctx context.Context, refresh bool) ([]Game, error) {
	from, to := YearRange(s.clock.Now().UTC().Year())
	query := apicalypse.New(ListingFields...).
		Where(
			apicalypse.Gte(fieldReleaseDate, from),
			apicalypse.Lt(fieldReleaseDate, to),
			apicalypse.NotNull(fieldRating),
		).
		Sort(fieldRating, apicalypse.Desc).
		Limit(s.cfg.FeaturedLimit).
		Build()

	return s.fetchGames(ctx, query, refresh)
}

// Top returns the hottest of the most reviewed games. A non-positive limit
// uses the configured default.
func (s *Service) Top(ctx context.Context, limit int) ([]Game, error) {
	return s.top(ctx, limit, false)
}

func (s *Service) top(ctx context.Context, limit int, refresh bool) ([]Game, error) {
	if limit <= 0 {
		limit = s.cfg.TopLimit
	}

	query := apicalypse.New(ListingFields...).
		Where(apicalypse.NotNull(fieldRating), apicalypse.NotNull(fieldRatingCount)).
		Sort(fieldRatingCount, apicalypse.Desc).
		Limit(s.cfg.TopPool).
		Build()

	games, err := s.fetchGames(ctx, query, refresh)
	if err != nil {
		return nil, err
	}
	return TopK(Rank(games), limit), nil
}

// ComingSoon returns games of the current year that are not yet released,
// soonest first.
func (s *Service) ComingSoon(ctx context.Context) ([]Game, error) {
	return s.comingSoon(ctx, false)
}

func (s *Service) comingSoon(ctx context.Context, refresh bool) ([]Game, error) {
	now := s.clock.Now()
	from, to := YearRange(now.UTC().Year())
	query := apicalypse.New(ListingFields...).
		Where(
			apicalypse.Gte(fieldReleaseDate, from),
			apicalypse.Lt(fieldReleaseDate, to),
			apicalypse.Gt(fieldReleaseDate, now.Unix()),
		).
		Sort(fieldReleaseDate, apicalypse.Asc).
		Limit(s.cfg.ComingSoonLimit).
		Build()

	return s.fetchGames(ctx, query, refresh)
}

// Genres lists all genres by name.
func (s *Service) Genres(ctx context.Context) ([]igdb.Genre, error) {
	return s.genres(ctx, false)
}

func (s *Service) genres(ctx context.Context, refresh bool) ([]igdb.Genre, error) {
	query := apicalypse.New("id", "name").
		Sort("name", apicalypse.Asc).
		Limit(s.cfg.GenreLimit).
		Build()

	key := cacheKey(igdb.EndpointGenres, query)
	if !refresh {
		if cached, ok := s.cache.getGenres(key); ok {
			return cached, nil
		}
	}

	var genres []igdb.Genre
	if err := s.catalog.Query(ctx, igdb.EndpointGenres, query, &genres); err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	if genres == nil {
		genres = []igdb.Genre{}
	}
	s.cache.Set(key, genres)
	return genres, nil
}

// Platforms lists console platforms by name.
func (s *Service) Platforms(ctx context.Context) ([]igdb.Platform, error) {
	return s.platforms(ctx, false)
}

func (s *Service) platforms(ctx context.Context, refresh bool) ([]igdb.Platform, error) {
	query := apicalypse.New("id", "name", "abbreviation").
		Where(apicalypse.Eq(fieldPlatformKind, 1)).
		Sort("name", apicalypse.Asc).
		Limit(s.cfg.PlatformLimit).
		Build()

	key := cacheKey(igdb.EndpointPlatforms, query)
	if !refresh {
		if cached, ok := s.cache.getPlatforms(key); ok {
			return cached, nil
		}
	}

	var platforms []igdb.Platform
	if err := s.catalog.Query(ctx, igdb.EndpointPlatforms, query, &platforms); err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	if platforms == nil {
		platforms = []igdb.Platform{}
	}
	s.cache.Set(key, platforms)
	return platforms, nil
}

// Game returns the detail record of a single game.
func (s *Service) Game(ctx context.Context, id int64) (*Game, error) {
	query := apicalypse.New(detailFields...).
		Where(apicalypse.Eq("id", id)).
		Limit(1).
		Build()

	games, err := s.fetchGames(ctx, query, false)
	if err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, ErrNotFound
	}
	g := games[0]
	return &g, nil
}

// Raw passes a caller-written query to the games endpoint unchanged.
func (s *Service) Raw(ctx context.Context, query string) (json.RawMessage, error) {
	if !s.cfg.AllowRawQueries {
		return nil, ErrRawQueriesDisabled
	}

	var out json.RawMessage
	if err := s.catalog.Query(ctx, igdb.EndpointGames, query, &out); err != nil {
		return nil, fmt.Errorf("raw query failed: %w", err)
	}
	if len(out) == 0 || string(out) == "null" {
		out = json.RawMessage("[]")
	}
	return out, nil
}

// warmConcurrency bounds parallel catalog requests during Warm.
const warmConcurrency = 3

// Warm refreshes the cached landing-page listings and taxonomies. Every
// listing is attempted; failures are joined.
func (s *Service) Warm(ctx context.Context) error {
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(warmConcurrency)

	warm := func(name string, fn func(ctx context.Context) error) {
		p.Go(func(ctx context.Context) error {
			if err := fn(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	warm("featured", func(ctx context.Context) error {
		_, err := s.featured(ctx, true)
		return err
	})
	warm("top", func(ctx context.Context) error {
		_, err := s.top(ctx, 0, true)
		return err
	})
	warm("coming soon", func(ctx context.Context) error {
		_, err := s.comingSoon(ctx, true)
		return err
	})
	warm("genres", func(ctx context.Context) error {
		_, err := s.genres(ctx, true)
		return err
	})
	warm("platforms", func(ctx context.Context) error {
		_, err := s.platforms(ctx, true)
		return err
	})

	if err := p.Wait(); err != nil {
		return err
	}

	s.logger.Info().Int("cached", s.cache.Len()).Msg("Discovery cache warmed")
	return nil
}

// CachedEntries returns the number of cached catalog responses.
func (s *Service) CachedEntries() int {
	return s.cache.Len()
}

// ClearCache drops all cached catalog responses.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

func (s *Service) fetchGames(ctx context.Context, query string, refresh bool) ([]Game, error) {
	key := cacheKey(igdb.EndpointGames, query)
	if !refresh {
		if cached, ok := s.cache.getGames(key); ok {
			return slices.Clone(cached), nil
		}
	}

	var games []Game
	if err := s.catalog.Query(ctx, igdb.EndpointGames, query, &games); err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	if games == nil {
		games = []Game{}
	}

	s.cache.Set(key, games)
	return slices.Clone(games), nil
}
