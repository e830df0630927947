package library

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/backlogd/backlogd/internal/igdb"
)

// Handlers provides HTTP handlers for the local game mirror.
type Handlers struct {
	service *Service
}

// NewHandlers creates new library handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers library routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/games", h.List)
	g.GET("/games/:igdbId", h.Get)
	g.POST("/games/:igdbId", h.Ensure)
}

// List returns mirrored games.
// GET /api/v1/library/games?page=1&pageSize=50
func (h *Handlers) List(c echo.Context) error {
	page := 1
	if p := c.QueryParam("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	pageSize := 50
	if ps := c.QueryParam("pageSize"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			pageSize = v
		}
	}

	result, err := h.service.List(c.Request().Context(), ListOptions{Page: page, PageSize: pageSize})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

// Get returns a mirrored game.
// GET /api/v1/library/games/:igdbId
func (h *Handlers) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	game, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, game)
}

// Ensure mirrors a catalog game if it is not stored yet.
// POST /api/v1/library/games/:igdbId
func (h *Handlers) Ensure(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	game, err := h.service.EnsureGame(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, game)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("igdbId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid igdb id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "game not found")
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
