// Package storage defines the persistence contracts for the time ledger and
// the site lists, and opens the configured backend.
package storage

import (
	"context"

	"github.com/benvon/sitetime/internal/models"
)

// Ledger is the persistent (site, day) -> milliseconds store.
// Accrue must be a single atomic read-modify-write in every implementation:
// concurrent callers adding to the same cell must never lose an increment.
type Ledger interface {
	Accrue(ctx context.Context, site, day string, ms int64) error
	// SiteTime returns 0 with a nil error for unknown sites or days
	SiteTime(ctx context.Context, site, day string) (int64, error)
	// DayTotals returns every site with a non-zero entry for day
	DayTotals(ctx context.Context, day string) (map[string]int64, error)
}

// Blocklist answers and mutates block-list membership
type Blocklist interface {
	IsBlocked(ctx context.Context, site string) (bool, error)
	SetBlocked(ctx context.Context, site string, blocked bool) error
	BlockedSites(ctx context.Context) ([]string, error)
}

// CategoryStore holds productive/distracting membership
type CategoryStore interface {
	Categories(ctx context.Context) (models.SiteCategories, error)
	// SetCategory removes site from every set, then adds it to the set for
	// category when category is productive or distracting
	SetCategory(ctx context.Context, site string, category models.Category) error
}

// SettingsStore persists user preferences
type SettingsStore interface {
	// GetSettings returns defaults when nothing has been saved yet
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
}

// Store is a complete backend
type Store interface {
	Ledger
	Blocklist
	CategoryStore
	SettingsStore

	Export(ctx context.Context) (*models.Snapshot, error)
	// Import merges the records present in snapshot over existing state;
	// siteData cells are replaced, not added
	Import(ctx context.Context, snapshot *models.Snapshot) error
	// Clear drops all data and restores default settings
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
