package discovery

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/backlogd/backlogd/internal/igdb"
)

// Handlers provides HTTP handlers for catalog discovery.
type Handlers struct {
	service *Service
}

// NewHandlers creates new discovery handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the discovery routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/games", h.ListGames)
	g.POST("/games", h.QueryGames)
	g.GET("/games/:id", h.GetGame)
	g.GET("/search", h.Search)
	g.GET("/genres", h.ListGenres)
	g.GET("/platforms", h.ListPlatforms)

	g.DELETE("/cache", h.ClearCache)
}

// ListGames lists games by preset type or structured filters.
// GET /api/v1/igdb/games?type=...&minRating=...&genreIds=1,2&sort=hot&limit=48&offset=0
func (h *Handlers) ListGames(c echo.Context) error {
	params, err := ParseListParams(c.QueryParams())
	if err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()

	if params.Query != "" {
		data, err := h.service.Raw(ctx, params.Query)
		if err != nil {
			return httpError(err)
		}
		return c.JSONBlob(http.StatusOK, data)
	}

	var games []Game
	switch params.Type {
	case ListFeatured:
		games, err = h.service.Featured(ctx)
	case ListTop:
		games, err = h.service.Top(ctx, derefOr(params.Limit, 0))
	case ListComingSoon:
		games, err = h.service.ComingSoon(ctx)
	default:
		games, err = h.service.Discover(ctx, params.Criteria())
	}
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, games)
}

// QueryGames lists games from a JSON filter body or runs a raw query.
// POST /api/v1/igdb/games
func (h *Handlers) QueryGames(c echo.Context) error {
	var body ListBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()

	if body.Query != "" {
		data, err := h.service.Raw(ctx, body.Query)
		if err != nil {
			return httpError(err)
		}
		return c.JSONBlob(http.StatusOK, data)
	}

	if err := body.Validate(); err != nil {
		return httpError(err)
	}

	games, err := h.service.Discover(ctx, body.Criteria())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, games)
}

// GetGame returns a single game.
// GET /api/v1/igdb/games/:id
func (h *Handlers) GetGame(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	game, err := h.service.Game(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, game)
}

// Search returns the hottest matches for a free-text term. Failures are
// logged and answered with an empty result.
// GET /api/v1/igdb/search?q=...
func (h *Handlers) Search(c echo.Context) error {
	items, err := h.service.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		h.service.logger.Warn().Err(err).Str("term", c.QueryParam("q")).Msg("Search failed")
		items = []Game{}
	}

	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// ListGenres lists catalog genres.
// GET /api/v1/igdb/genres
func (h *Handlers) ListGenres(c echo.Context) error {
	genres, err := h.service.Genres(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, genres)
}

// ListPlatforms lists catalog platforms.
// GET /api/v1/igdb/platforms
func (h *Handlers) ListPlatforms(c echo.Context) error {
	platforms, err := h.service.Platforms(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, platforms)
}

// ClearCache drops cached catalog responses.
// DELETE /api/v1/igdb/cache
func (h *Handlers) ClearCache(c echo.Context) error {
	h.service.ClearCache()
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"error":   "Invalid parameters",
			"details": verr.Fields,
		})
	case errors.Is(err, ErrInvalidCriteria):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "game not found")
	case errors.Is(err, ErrRawQueriesDisabled):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, igdb.ErrCredentialsMissing):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "catalog credentials not configured")
	case errors.Is(err, igdb.ErrAPIError),
		errors.Is(err, igdb.ErrRateLimited),
		errors.Is(err, igdb.ErrUnauthorized),
		errors.Is(err, igdb.ErrTokenRequest):
		return echo.NewHTTPError(http.StatusBadGateway, "catalog request failed")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
