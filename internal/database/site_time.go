package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SiteTimeRepository handles the per-site, per-day time ledger
type SiteTimeRepository struct {
	db *DB
}

// NewSiteTimeRepository creates a new site time repository
func NewSiteTimeRepository(db *DB) *SiteTimeRepository {
	return &SiteTimeRepository{db: db}
}

// Accrue adds ms to the (site, day) row in a single upsert so concurrent
// writers cannot lose increments
func (r *SiteTimeRepository) Accrue(ctx context.Context, site, day string, ms int64) error {
	query := `
		INSERT INTO site_time (site, day, ms, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site, day) DO UPDATE
		SET ms = site_time.ms + EXCLUDED.ms,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.db.rebind(query), site, day, ms, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to accrue site time: %w", err)
	}

	return nil
}

// SiteTime returns the accrued milliseconds, or 0 when there is no row
func (r *SiteTimeRepository) SiteTime(ctx context.Context, site, day string) (int64, error) {
	query := `
		SELECT ms
		FROM site_time
		WHERE site = $1 AND day = $2
	`

	var ms int64
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), site, day).Scan(&ms)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get site time: %w", err)
	}

	return ms, nil
}

// DayTotals returns every site with a non-zero entry for day
func (r *SiteTimeRepository) DayTotals(ctx context.Context, day string) (map[string]int64, error) {
	query := `
		SELECT site, ms
		FROM site_time
		WHERE day = $1 AND ms > 0
	`

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), day)
	if err != nil {
		return nil, fmt.Errorf("failed to query day totals: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err
		}
	}()

	totals := make(map[string]int64)
	for rows.Next() {
		var site string
		var ms int64
		if err := rows.Scan(&site, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan site time: %w", err)
		}
		totals[site] = ms
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site time: %w", err)
	}

	return totals, nil
}

// all returns the whole ledger as site -> day -> ms
func (r *SiteTimeRepository) all(ctx context.Context, q queryer) (map[string]map[string]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT site, day, ms FROM site_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to query site time: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err
		}
	}()

	data := make(map[string]map[string]int64)
	for rows.Next() {
		var site, day string
		var ms int64
		if err := rows.Scan(&site, &day, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan site time: %w", err)
		}
		if _, ok := data[site]; !ok {
			data[site] = make(map[string]int64)
		}
		data[site][day] = ms
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site time: %w", err)
	}

	return data, nil
}

// replace sets (site, day) to exactly ms, used by snapshot import
func (r *SiteTimeRepository) replace(ctx context.Context, q queryer, site, day string, ms int64) error {
	query := `
		INSERT INTO site_time (site, day, ms, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site, day) DO UPDATE
		SET ms = EXCLUDED.ms,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := q.ExecContext(ctx, r.db.rebind(query), site, day, ms, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to replace site time: %w", err)
	}
	return nil
}
