package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/benvon/sitetime/internal/models"
)

// Store bundles the repositories into one backend
type Store struct {
	db       *DB
	siteTime *SiteTimeRepository
	lists    *SiteListRepository
	settings *SettingsRepository
}

// NewStore creates a store over db. Call db.Migrate first on a fresh database.
func NewStore(db *DB) *Store {
	return &Store{
		db:       db,
		siteTime: NewSiteTimeRepository(db),
		lists:    NewSiteListRepository(db),
		settings: NewSettingsRepository(db),
	}
}

// Open connects to databaseURL, applies the schema and returns a store
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := New(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// Accrue adds ms to (site, day)
func (s *Store) Accrue(ctx context.Context, site, day string, ms int64) error {
	return s.siteTime.Accrue(ctx, site, day, ms)
}

// SiteTime returns the accrued ms for (site, day)
func (s *Store) SiteTime(ctx context.Context, site, day string) (int64, error) {
	return s.siteTime.SiteTime(ctx, site, day)
}

// DayTotals returns every site with time on day
func (s *Store) DayTotals(ctx context.Context, day string) (map[string]int64, error) {
	return s.siteTime.DayTotals(ctx, day)
}

// IsBlocked reports block-list membership
func (s *Store) IsBlocked(ctx context.Context, site string) (bool, error) {
	return s.lists.IsBlocked(ctx, site)
}

// SetBlocked adds or removes site from the block list
func (s *Store) SetBlocked(ctx context.Context, site string, blocked bool) error {
	return s.lists.SetBlocked(ctx, site, blocked)
}

// BlockedSites returns the block list
func (s *Store) BlockedSites(ctx context.Context) ([]string, error) {
	return s.lists.BlockedSites(ctx)
}

// Categories returns category membership
func (s *Store) Categories(ctx context.Context) (models.SiteCategories, error) {
	return s.lists.Categories(ctx)
}

// SetCategory moves site into category
func (s *Store) SetCategory(ctx context.Context, site string, category models.Category) error {
	return s.lists.SetCategory(ctx, site, category)
}

// GetSettings returns stored settings or defaults
func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	return s.settings.GetSettings(ctx)
}

// SaveSettings stores settings
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	return s.settings.SaveSettings(ctx, settings)
}

// Export reads the full state inside one transaction
func (s *Store) Export(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		data, err := s.siteTime.all(ctx, tx)
		if err != nil {
			return err
		}
		snap.SiteData = data

		blocked, err := s.lists.listSites(ctx, tx, `SELECT site FROM blocked_sites ORDER BY position, site`)
		if err != nil {
			return err
		}
		snap.BlockedSites = blocked

		categories, err := s.lists.categories(ctx, tx)
		if err != nil {
			return err
		}
		snap.SiteCategories = categories
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export snapshot: %w", err)
	}

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export snapshot: %w", err)
	}
	snap.Settings = &settings

	return snap, nil
}

// Import writes the records present in snapshot in one transaction
func (s *Store) Import(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return nil
	}

	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		for site, days := range snapshot.SiteData {
			for day, ms := range days {
				if err := s.siteTime.replace(ctx, tx, site, day, ms); err != nil {
					return err
				}
			}
		}

		if snapshot.BlockedSites != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_sites`); err != nil {
				return fmt.Errorf("failed to reset blocked sites: %w", err)
			}
			for _, site := range snapshot.BlockedSites {
				if err := s.lists.appendBlocked(ctx, tx, site); err != nil {
					return fmt.Errorf("failed to import blocked site: %w", err)
				}
			}
		}

		cats := snapshot.SiteCategories
		if cats.Productive != nil || cats.Distracting != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM site_categories`); err != nil {
				return fmt.Errorf("failed to reset site categories: %w", err)
			}
			// distracting first so a site listed twice ends up productive
			for _, site := range cats.Distracting {
				if err := s.lists.setCategory(ctx, tx, site, models.CategoryDistracting); err != nil {
					return err
				}
			}
			for _, site := range cats.Productive {
				if err := s.lists.setCategory(ctx, tx, site, models.CategoryProductive); err != nil {
					return err
				}
			}
		}

		if snapshot.Settings != nil {
			if err := s.settings.save(ctx, tx, *snapshot.Settings); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	return nil
}

// Clear deletes every row; settings fall back to defaults
func (s *Store) Clear(ctx context.Context) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"site_time", "blocked_sites", "site_categories", "settings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
