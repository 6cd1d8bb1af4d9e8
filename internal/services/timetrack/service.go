// Package timetrack is the read and write side of the time ledger: it
// accrues intervals, answers per-site queries, builds daily summaries and
// insights, and manages the block list, categories and settings.
package timetrack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benvon/sitetime/internal/logger"
	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/sites"
	"github.com/benvon/sitetime/internal/storage"
	"github.com/benvon/sitetime/internal/validation"
	"go.uber.org/zap"
)

// ReasonUnrecognizedCategory tags a category change that was ignored
const ReasonUnrecognizedCategory = "unrecognized_category"

// Result is the outcome of a mutating messaging operation. Ignored marks
// input that was accepted but had no effect.
type Result struct {
	Success bool   `json:"success"`
	Ignored bool   `json:"ignored,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Service implements the ledger and aggregation operations over a store
type Service struct {
	store  storage.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a service backed by store
func NewService(store storage.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Store returns the underlying storage backend
func (s *Service) Store() storage.Store {
	return s.store
}

// Today returns the current day key
func (s *Service) Today() string {
	return models.DayKey(s.now())
}

// ResolveDay returns today for an empty date and validates anything else
func (s *Service) ResolveDay(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return s.Today(), nil
	}
	if _, err := models.ParseDayKey(date); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return date, nil
}

// ResolveSite normalizes a hostname or URL into a site identifier
func ResolveSite(hostname string) (string, error) {
	site := sites.Normalize(hostname)
	if !sites.Valid(site) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSite, logger.SanitizeHostname(hostname))
	}
	return site, nil
}

// Accrue adds ms to (site, date)
func (s *Service) Accrue(ctx context.Context, hostname, date string, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, ms)
	}
	site, err := ResolveSite(hostname)
	if err != nil {
		return err
	}
	day, err := s.ResolveDay(date)
	if err != nil {
		return err
	}
	if ms == 0 {
		return nil
	}
	if err := s.store.Accrue(ctx, site, day, ms); err != nil {
		return fmt.Errorf("failed to accrue time: %w", err)
	}
	return nil
}

// QuerySiteTime returns the milliseconds accrued for (site, date), 0 when absent
func (s *Service) QuerySiteTime(ctx context.Context, hostname, date string) (int64, error) {
	site, err := ResolveSite(hostname)
	if err != nil {
		return 0, err
	}
	day, err := s.ResolveDay(date)
	if err != nil {
		return 0, err
	}
	ms, err := s.store.SiteTime(ctx, site, day)
	if err != nil {
		return 0, fmt.Errorf("failed to get site time: %w", err)
	}
	return ms, nil
}

// DailySummary splits a day's time into the three category buckets.
// TotalTime is always the sum of the buckets.
func (s *Service) DailySummary(ctx context.Context, date string) (*models.DailySummary, error) {
	day, err := s.ResolveDay(date)
	if err != nil {
		return nil, err
	}
	totals, categories, err := s.dayData(ctx, day)
	if err != nil {
		return nil, err
	}
	return summarize(day, totals, categories.Lookup()), nil
}

// SiteBreakdown returns every site with time on date, largest first
func (s *Service) SiteBreakdown(ctx context.Context, date string) ([]models.SiteTime, error) {
	day, err := s.ResolveDay(date)
	if err != nil {
		return nil, err
	}
	totals, categories, err := s.dayData(ctx, day)
	if err != nil {
		return nil, err
	}
	return breakdown(totals, categories.Lookup()), nil
}

// SetCategory moves site into category. Neutral or empty removes it from
// every set. An unrecognized category changes nothing and is reported as
// an ignored result rather than an error.
func (s *Service) SetCategory(ctx context.Context, hostname, category string) (Result, error) {
	site, err := ResolveSite(hostname)
	if err != nil {
		return Result{}, err
	}

	c := models.Category(strings.ToLower(strings.TrimSpace(category)))
	if c == "" {
		c = models.CategoryNeutral
	}
	if !c.IsValid() {
		s.logger.Info("category_change_ignored",
			zap.String("site", logger.SanitizeHostname(site)),
			zap.String("category", logger.SanitizeString(category, 64)),
		)
		return Result{Success: true, Ignored: true, Reason: ReasonUnrecognizedCategory}, nil
	}

	if err := s.store.SetCategory(ctx, site, c); err != nil {
		return Result{}, fmt.Errorf("failed to set category: %w", err)
	}
	s.logger.Info("site_category_set",
		zap.String("site", logger.SanitizeHostname(site)),
		zap.String("category", string(c)),
	)
	return Result{Success: true}, nil
}

// SetBlocked adds site to or removes it from the block list
func (s *Service) SetBlocked(ctx context.Context, hostname string, shouldBlock bool) (Result, error) {
	site, err := ResolveSite(hostname)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.SetBlocked(ctx, site, shouldBlock); err != nil {
		return Result{}, fmt.Errorf("failed to update block list: %w", err)
	}
	s.logger.Info("site_block_set",
		zap.String("site", logger.SanitizeHostname(site)),
		zap.Bool("blocked", shouldBlock),
	)
	return Result{Success: true}, nil
}

// BlockedSites returns the block list in insertion order
func (s *Service) BlockedSites(ctx context.Context) ([]string, error) {
	blocked, err := s.store.BlockedSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked sites: %w", err)
	}
	return blocked, nil
}

// Categories returns the stored category membership
func (s *Service) Categories(ctx context.Context) (models.SiteCategories, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return categories, fmt.Errorf("failed to get categories: %w", err)
	}
	return categories, nil
}

// GetSettings returns the saved settings or defaults
func (s *Service) GetSettings(ctx context.Context) (models.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return settings, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// SaveSettings validates and stores settings
func (s *Service) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := validation.Validate.Struct(settings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Export returns the full persisted state
func (s *Service) Export(ctx context.Context) (*models.Snapshot, error) {
	snap, err := s.store.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export data: %w", err)
	}
	return snap, nil
}

// Import normalizes and validates snapshot, then writes it over the current state
func (s *Service) Import(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return nil
	}
	clean, err := normalizeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := s.store.Import(ctx, clean); err != nil {
		return fmt.Errorf("failed to import data: %w", err)
	}
	s.logger.Info("snapshot_imported",
		zap.Int("sites", len(clean.SiteData)),
		zap.Int("blocked_sites", len(clean.BlockedSites)),
	)
	return nil
}

// Clear drops all data and restores default settings
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	s.logger.Warn("all_data_cleared")
	return nil
}

func (s *Service) dayData(ctx context.Context, day string) (map[string]int64, models.SiteCategories, error) {
	totals, err := s.store.DayTotals(ctx, day)
	if err != nil {
		return nil, models.SiteCategories{}, fmt.Errorf("failed to read day totals: %w", err)
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, models.SiteCategories{}, fmt.Errorf("failed to get categories: %w", err)
	}
	return totals, categories, nil
}

func summarize(day string, totals map[string]int64, lookup models.CategoryIndex) *models.DailySummary {
	summary := &models.DailySummary{Date: day}
	for site, ms := range totals {
		if ms <= 0 {
			continue
		}
		summary.SitesVisited++
		switch lookup.Classify(site) {
		case models.CategoryProductive:
			summary.ProductiveTime += ms
		case models.CategoryDistracting:
			summary.DistractingTime += ms
		default:
			summary.NeutralTime += ms
		}
	}
	summary.TotalTime = summary.ProductiveTime + summary.NeutralTime + summary.DistractingTime
	return summary
}

func breakdown(totals map[string]int64, lookup models.CategoryIndex) []models.SiteTime {
	var total int64
	for _, ms := range totals {
		total += ms
	}

	out := make([]models.SiteTime, 0, len(totals))
	for site, ms := range totals {
		if ms <= 0 {
			continue
		}
		out = append(out, models.SiteTime{
			Hostname:  site,
			TimeSpent: ms,
			Category:  lookup.Classify(site),
			Percent:   percentOf(ms, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSpent != out[j].TimeSpent {
			return out[i].TimeSpent > out[j].TimeSpent
		}
		return out[i].Hostname < out[j].Hostname
	})
	return out
}

func percentOf(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// normalizeSnapshot rewrites every hostname into its stored form and
// rejects snapshots that could not have been produced by an export
func normalizeSnapshot(in *models.Snapshot) (*models.Snapshot, error) {
	out := &models.Snapshot{
		SiteData: models.SiteData{},
		Settings: in.Settings,
	}

	for host, days := range in.SiteData {
		site, err := ResolveSite(host)
		if err != nil {
			return nil, err
		}
		for day, ms := range days {
			if _, err := models.ParseDayKey(day); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDate, day)
			}
			if ms < 0 {
				return nil, fmt.Errorf("%w: %s/%s is %d", ErrInvalidDuration, site, day, ms)
			}
			out.SiteData.Add(site, day, ms)
		}
	}

	if in.BlockedSites != nil {
		blocked, err := resolveSites(in.BlockedSites)
		if err != nil {
			return nil, err
		}
		out.BlockedSites = blocked
	}

	if in.SiteCategories.Productive != nil || in.SiteCategories.Distracting != nil {
		productive, err := resolveSites(in.SiteCategories.Productive)
		if err != nil {
			return nil, err
		}
		distracting, err := resolveSites(in.SiteCategories.Distracting)
		if err != nil {
			return nil, err
		}
		out.SiteCategories = models.SiteCategories{
			Productive:  productive,
			Neutral:     []string{},
			Distracting: distracting,
		}
	}

	if in.Settings != nil {
		if err := validation.Validate.Struct(in.Settings); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	return out, nil
}

func resolveSites(hosts []string) ([]string, error) {
	out := make([]string, 0, len(hosts))
	for _, host := range hosts {
		site, err := ResolveSite(host)
		if err != nil {
			return nil, err
		}
		out = append(out, site)
	}
	return out, nil
}
