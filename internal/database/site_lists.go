package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/benvon/sitetime/internal/models"
)

// SiteListRepository handles the block list and category membership
type SiteListRepository struct {
	db *DB
}

// NewSiteListRepository creates a new site list repository
func NewSiteListRepository(db *DB) *SiteListRepository {
	return &SiteListRepository{db: db}
}

// IsBlocked reports whether site is on the block list
func (r *SiteListRepository) IsBlocked(ctx context.Context, site string) (bool, error) {
	query := `SELECT 1 FROM blocked_sites WHERE site = $1`

	var one int
	err := r.db.QueryRowContext(ctx, r.db.rebind(query), site).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blocked site: %w", err)
	}

	return true, nil
}

// SetBlocked adds site at the end of the block list or removes it; both directions are idempotent
func (r *SiteListRepository) SetBlocked(ctx context.Context, site string, blocked bool) error {
	if !blocked {
		if _, err := r.db.ExecContext(ctx, r.db.rebind(`DELETE FROM blocked_sites WHERE site = $1`), site); err != nil {
			return fmt.Errorf("failed to unblock site: %w", err)
		}
		return nil
	}

	if err := r.appendBlocked(ctx, r.db, site); err != nil {
		return fmt.Errorf("failed to block site: %w", err)
	}
	return nil
}

func (r *SiteListRepository) appendBlocked(ctx context.Context, q queryer, site string) error {
	// WHERE true keeps SQLite from reading ON CONFLICT as a join clause
	query := `
		INSERT INTO blocked_sites (site, position, created_at)
		SELECT CAST($1 AS TEXT), COALESCE(MAX(position), 0) + 1, CURRENT_TIMESTAMP
		FROM blocked_sites
		WHERE true
		ON CONFLICT (site) DO NOTHING
	`
	_, err := q.ExecContext(ctx, r.db.rebind(query), site)
	return err
}

// BlockedSites returns the block list in insertion order
func (r *SiteListRepository) BlockedSites(ctx context.Context) ([]string, error) {
	return r.listSites(ctx, r.db, `SELECT site FROM blocked_sites ORDER BY position, site`)
}

// Categories returns productive and distracting membership in insertion order
func (r *SiteListRepository) Categories(ctx context.Context) (models.SiteCategories, error) {
	return r.categories(ctx, r.db)
}

func (r *SiteListRepository) categories(ctx context.Context, q queryer) (models.SiteCategories, error) {
	categories := models.NewSiteCategories()

	productive, err := r.listSites(ctx, q, r.db.rebind(`SELECT site FROM site_categories WHERE category = $1 ORDER BY position, site`), string(models.CategoryProductive))
	if err != nil {
		return categories, err
	}
	distracting, err := r.listSites(ctx, q, r.db.rebind(`SELECT site FROM site_categories WHERE category = $1 ORDER BY position, site`), string(models.CategoryDistracting))
	if err != nil {
		return categories, err
	}

	categories.Productive = productive
	categories.Distracting = distracting
	return categories, nil
}

// SetCategory clears site from every category and then files it under
// category when that is productive or distracting. One row per site makes
// dual membership unrepresentable.
func (r *SiteListRepository) SetCategory(ctx context.Context, site string, category models.Category) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		return r.setCategory(ctx, tx, site, category)
	})
}

func (r *SiteListRepository) setCategory(ctx context.Context, q queryer, site string, category models.Category) error {
	if _, err := q.ExecContext(ctx, r.db.rebind(`DELETE FROM site_categories WHERE site = $1`), site); err != nil {
		return fmt.Errorf("failed to clear site category: %w", err)
	}

	if category != models.CategoryProductive && category != models.CategoryDistracting {
		return nil
	}

	query := `
		INSERT INTO site_categories (site, category, position, updated_at)
		SELECT CAST($1 AS TEXT), CAST($2 AS TEXT), COALESCE(MAX(position), 0) + 1, CURRENT_TIMESTAMP
		FROM site_categories
		WHERE true
	`
	if _, err := q.ExecContext(ctx, r.db.rebind(query), site, string(category)); err != nil {
		return fmt.Errorf("failed to set site category: %w", err)
	}
	return nil
}

func (r *SiteListRepository) listSites(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err
		}
	}()

	sites := []string{}
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sites: %w", err)
	}

	return sites, nil
}
