package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/backlogd/backlogd/internal/apicalypse"
	"github.com/backlogd/backlogd/internal/igdb"
)

var ErrGameNotFound = errors.New("game not found")

// refreshBatchSize bounds the ids fetched per catalog request.
const refreshBatchSize = 100

var recordFields = []string{"id", "name", "summary", "cover.image_id"}

// Catalog executes catalog queries.
type Catalog interface {
	Query(ctx context.Context, endpoint, query string, out any) error
}

// Service mirrors catalog games into the local database.
type Service struct {
	store   *store
	catalog Catalog
	clock   clockwork.Clock
	logger  zerolog.Logger
}

// NewService creates a new library service.
func NewService(db *sql.DB, catalog Catalog, clock clockwork.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:   &store{db: db},
		catalog: catalog,
		clock:   clock,
		logger:  logger.With().Str("component", "library").Logger(),
	}
}

// Get returns a mirrored game by catalog id.
func (s *Service) Get(ctx context.Context, igdbID int64) (*Game, error) {
	row, err := s.store.getByIGDBID(ctx, igdbID)
	if err != nil {
		return nil, err
	}
	return toGame(row), nil
}

// EnsureGame returns the mirrored game, fetching it from the catalog and
// storing it on first use.
func (s *Service) EnsureGame(ctx context.Context, igdbID int64) (*Game, error) {
	game, err := s.Get(ctx, igdbID)
	if err == nil {
		return game, nil
	}
	if !errors.Is(err, ErrGameNotFound) {
		return nil, err
	}

	records, err := s.fetch(ctx, []int64{igdbID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrGameNotFound
	}

	row, err := s.store.upsert(ctx, s.upsertParams(records[0]))
	if err != nil {
		return nil, fmt.Errorf("failed to store game %d: %w", igdbID, err)
	}

	s.logger.Info().Int64("igdbId", igdbID).Str("name", row.Name).Msg("Mirrored catalog game")
	return toGame(row), nil
}

// List returns mirrored games ordered by name.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	offset := int64((opts.Page - 1) * opts.PageSize)
	rows, err := s.store.list(ctx, int64(opts.PageSize), offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.count(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]*Game, len(rows))
	for i, row := range rows {
		items[i] = toGame(row)
	}

	totalPages := int(total) / opts.PageSize
	if int(total)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// RefreshStale re-fetches games not updated within olderThan and returns
// how many were refreshed. Games the catalog no longer returns are kept
// and marked as checked.
func (s *Service) RefreshStale(ctx context.Context, olderThan time.Duration) (int, error) {
	before := s.clock.Now().Add(-olderThan)
	refreshed := 0

	for {
		rows, err := s.store.listStale(ctx, before, refreshBatchSize)
		if err != nil {
			return refreshed, fmt.Errorf("failed to list stale games: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		ids := make([]int64, len(rows))
		for i, row := range rows {
			ids[i] = row.IGDBID
		}

		records, err := s.fetch(ctx, ids)
		if err != nil {
			return refreshed, err
		}

		found := make(map[int64]bool, len(records))
		for _, rec := range records {
			if _, err := s.store.upsert(ctx, s.upsertParams(rec)); err != nil {
				return refreshed, fmt.Errorf("failed to update game %d: %w", rec.ID, err)
			}
			found[rec.ID] = true
			refreshed++
		}
		for _, id := range ids {
			if found[id] {
				continue
			}
			s.logger.Warn().Int64("igdbId", id).Msg("Catalog no longer returns game")
			if err := s.store.touch(ctx, id, s.clock.Now()); err != nil {
				return refreshed, err
			}
		}

		if len(rows) < refreshBatchSize {
			break
		}
	}

	if refreshed > 0 {
		s.logger.Info().Int("count", refreshed).Msg("Refreshed stale games")
	}
	return refreshed, nil
}

func (s *Service) fetch(ctx context.Context, ids []int64) ([]igdb.GameRecord, error) {
	query := apicalypse.New(recordFields...).
		Where(apicalypse.In("id", ids...)).
		Limit(len(ids)).
		Build()

	var records []igdb.GameRecord
	if err := s.catalog.Query(ctx, igdb.EndpointGames, query, &records); err != nil {
		return nil, fmt.Errorf("failed to fetch games from catalog: %w", err)
	}
	return records, nil
}

func (s *Service) upsertParams(rec igdb.GameRecord) upsertGameParams {
	return upsertGameParams{
		IGDBID:  rec.ID,
		Name:    rec.Name,
		Summary: rec.Summary,
		CoverID: rec.CoverID(),
		Now:     s.clock.Now(),
	}
}

func toGame(row *gameRow) *Game {
	return &Game{
		ID:        row.ID,
		IGDBID:    row.IGDBID,
		Name:      row.Name,
		Summary:   row.Summary,
		CoverID:   row.CoverID,
		CoverURL:  igdb.CoverURL(row.CoverID),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}
