package library

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const gameColumns = `id, igdb_id, name, summary, cover_id, created_at, updated_at`

type gameRow struct {
	ID        int64
	IGDBID    int64
	Name      string
	Summary   string
	CoverID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type upsertGameParams struct {
	IGDBID  int64
	Name    string
	Summary string
	CoverID string
	Now     time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

// store holds the SQL for the games table.
type store struct {
	db *sql.DB
}

func scanGame(s rowScanner) (*gameRow, error) {
	var r gameRow
	if err := s.Scan(&r.ID, &r.IGDBID, &r.Name, &r.Summary, &r.CoverID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (q *store) getByIGDBID(ctx context.Context, igdbID int64) (*gameRow, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE igdb_id = ?`, igdbID)
	r, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return r, err
}

func (q *store) upsert(ctx context.Context, p upsertGameParams) (*gameRow, error) {
	now := dbTime(p.Now)
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO games (igdb_id, name, summary, cover_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(igdb_id) DO UPDATE SET
			name = excluded.name,
			summary = excluded.summary,
			cover_id = excluded.cover_id,
			updated_at = excluded.updated_at
		RETURNING `+gameColumns,
		p.IGDBID, p.Name, p.Summary, p.CoverID, now, now)
	return scanGame(row)
}

func (q *store) list(ctx context.Context, limit, offset int64) ([]*gameRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY name COLLATE NOCASE, igdb_id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (q *store) count(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&n)
	return n, err
}

func (q *store) listStale(ctx context.Context, before time.Time, limit int64) ([]*gameRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE updated_at < ? ORDER BY updated_at LIMIT ?`,
		dbTime(before), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (q *store) touch(ctx context.Context, igdbID int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE games SET updated_at = ? WHERE igdb_id = ?`, dbTime(now), igdbID)
	return err
}

func collect(rows *sql.Rows) ([]*gameRow, error) {
	var out []*gameRow
	for rows.Next() {
		r, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// dbTime normalizes timestamps so stored values compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
