package storage

import (
	"context"
	"sync"

	"github.com/benvon/sitetime/internal/models"
)

// MemoryStore keeps everything in process memory behind one mutex.
// Used for tests and for ephemeral local runs.
type MemoryStore struct {
	mu         sync.Mutex
	siteData   models.SiteData
	blocked    []string
	categories models.SiteCategories
	settings   *models.Settings
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		siteData:   models.SiteData{},
		blocked:    []string{},
		categories: models.NewSiteCategories(),
	}
}

var _ Store = (*MemoryStore)(nil)

// Accrue adds ms to (site, day) under the store lock
func (s *MemoryStore) Accrue(ctx context.Context, site, day string, ms int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siteData.Add(site, day, ms)
	return nil
}

// SiteTime returns the accrued time for (site, day)
func (s *MemoryStore) SiteTime(ctx context.Context, site, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.siteData[site][day], nil
}

// DayTotals returns all sites with time on day
func (s *MemoryStore) DayTotals(ctx context.Context, day string) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[string]int64)
	for site, days := range s.siteData {
		if ms := days[day]; ms > 0 {
			totals[site] = ms
		}
	}
	return totals, nil
}

// IsBlocked reports block-list membership
func (s *MemoryStore) IsBlocked(ctx context.Context, site string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.blocked, site) >= 0, nil
}

// SetBlocked adds or removes site, keeping insertion order
func (s *MemoryStore) SetBlocked(ctx context.Context, site string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blocked {
		if indexOf(s.blocked, site) < 0 {
			s.blocked = append(s.blocked, site)
		}
		return nil
	}
	s.blocked = without(s.blocked, site)
	return nil
}

// BlockedSites returns a copy of the block list
func (s *MemoryStore) BlockedSites(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.blocked...), nil
}

// Categories returns a copy of category membership
func (s *MemoryStore) Categories(ctx context.Context) (models.SiteCategories, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCategories(s.categories), nil
}

// SetCategory clears site from every set and re-adds it where it belongs
func (s *MemoryStore) SetCategory(ctx context.Context, site string, category models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories.Productive = without(s.categories.Productive, site)
	s.categories.Neutral = without(s.categories.Neutral, site)
	s.categories.Distracting = without(s.categories.Distracting, site)
	switch category {
	case models.CategoryProductive:
		s.categories.Productive = append(s.categories.Productive, site)
	case models.CategoryDistracting:
		s.categories.Distracting = append(s.categories.Distracting, site)
	}
	return nil
}

// GetSettings returns saved settings or defaults
func (s *MemoryStore) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return models.DefaultSettings(), nil
	}
	return *s.settings, nil
}

// SaveSettings replaces the stored settings
func (s *MemoryStore) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

// Export returns a deep copy of the whole state
func (s *MemoryStore) Export(ctx context.Context) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := models.NewSnapshot()
	for site, days := range s.siteData {
		for day, ms := range days {
			snap.SiteData.Add(site, day, ms)
		}
	}
	snap.BlockedSites = append(snap.BlockedSites, s.blocked...)
	snap.SiteCategories = copyCategories(s.categories)
	if s.settings != nil {
		settings := *s.settings
		snap.Settings = &settings
	}
	return snap, nil
}

// Import overwrites the records present in snapshot
func (s *MemoryStore) Import(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for site, days := range snapshot.SiteData {
		for day, ms := range days {
			if _, ok := s.siteData[site]; !ok {
				s.siteData[site] = make(map[string]int64)
			}
			s.siteData[site][day] = ms
		}
	}
	if snapshot.BlockedSites != nil {
		s.blocked = dedupe(snapshot.BlockedSites)
	}
	if snapshot.SiteCategories.Productive != nil || snapshot.SiteCategories.Distracting != nil {
		productive := dedupe(snapshot.SiteCategories.Productive)
		distracting := dedupe(snapshot.SiteCategories.Distracting)
		for _, site := range productive {
			distracting = without(distracting, site)
		}
		s.categories = models.SiteCategories{
			Productive:  productive,
			Neutral:     []string{},
			Distracting: distracting,
		}
	}
	if snapshot.Settings != nil {
		settings := *snapshot.Settings
		s.settings = &settings
	}
	return nil
}

// Clear resets to an empty store with default settings
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siteData = models.SiteData{}
	s.blocked = []string{}
	s.categories = models.NewSiteCategories()
	settings := models.DefaultSettings()
	s.settings = &settings
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func copyCategories(c models.SiteCategories) models.SiteCategories {
	return models.SiteCategories{
		Productive:  append([]string{}, c.Productive...),
		Neutral:     append([]string{}, c.Neutral...),
		Distracting: append([]string{}, c.Distracting...),
	}
}
