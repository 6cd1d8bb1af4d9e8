// Package redisstore keeps the ledger and site lists in Redis. Ledger cells
// live in one hash per site and are only ever changed with HINCRBY, which is
// atomic on the server.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/benvon/sitetime/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key this store writes
const DefaultKeyPrefix = "sitetime"

// Store is a Redis-backed storage backend
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to redisURL and verifies the connection
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewWithClient(client, DefaultKeyPrefix), nil
}

// NewWithClient wraps an existing client, e.g. one shared with the rate limiter
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Client exposes the underlying client
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) siteKey(site string) string { return s.prefix + ":site:" + site }
func (s *Store) dayKey(day string) string   { return s.prefix + ":day:" + day }
func (s *Store) sitesKey() string           { return s.prefix + ":sites" }
func (s *Store) blockedKey() string         { return s.prefix + ":blocked" }
func (s *Store) categoriesKey() string      { return s.prefix + ":categories" }
func (s *Store) settingsKey() string        { return s.prefix + ":settings" }

// Accrue increments the (site, day) field and indexes the site for the day
func (s *Store) Accrue(ctx context.Context, site, day string, ms int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.siteKey(site), day, ms)
		pipe.SAdd(ctx, s.dayKey(day), site)
		pipe.SAdd(ctx, s.sitesKey(), site)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to accrue site time: %w", err)
	}
	return nil
}

// SiteTime returns 0 for unknown sites or days
func (s *Store) SiteTime(ctx context.Context, site, day string) (int64, error) {
	ms, err := s.client.HGet(ctx, s.siteKey(site), day).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get site time: %w", err)
	}
	return ms, nil
}

// DayTotals reads every site indexed for day
func (s *Store) DayTotals(ctx context.Context, day string) (map[string]int64, error) {
	sites, err := s.client.SMembers(ctx, s.dayKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sites for day: %w", err)
	}

	cmds := make(map[string]*redis.StringCmd, len(sites))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, site := range sites {
			cmds[site] = pipe.HGet(ctx, s.siteKey(site), day)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read day totals: %w", err)
	}

	totals := make(map[string]int64, len(sites))
	for site, cmd := range cmds {
		ms, err := cmd.Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to parse site time for %s: %w", site, err)
		}
		if ms > 0 {
			totals[site] = ms
		}
	}
	return totals, nil
}

// IsBlocked reports block-list membership
func (s *Store) IsBlocked(ctx context.Context, site string) (bool, error) {
	_, err := s.client.ZScore(ctx, s.blockedKey(), site).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blocked site: %w", err)
	}
	return true, nil
}

// SetBlocked adds site (scored by insertion time, NX keeps the first position) or removes it
func (s *Store) SetBlocked(ctx context.Context, site string, blocked bool) error {
	var err error
	if blocked {
		err = s.client.ZAddNX(ctx, s.blockedKey(), redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: site,
		}).Err()
	} else {
		err = s.client.ZRem(ctx, s.blockedKey(), site).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update blocked site: %w", err)
	}
	return nil
}

// BlockedSites returns the block list in insertion order
func (s *Store) BlockedSites(ctx context.Context) ([]string, error) {
	sites, err := s.client.ZRange(ctx, s.blockedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list blocked sites: %w", err)
	}
	if sites == nil {
		sites = []string{}
	}
	return sites, nil
}

// Categories returns membership sorted by hostname
func (s *Store) Categories(ctx context.Context) (models.SiteCategories, error) {
	categories := models.NewSiteCategories()

	all, err := s.client.HGetAll(ctx, s.categoriesKey()).Result()
	if err != nil {
		return categories, fmt.Errorf("failed to get site categories: %w", err)
	}

	for site, category := range all {
		switch models.Category(category) {
		case models.CategoryProductive:
			categories.Productive = append(categories.Productive, site)
		case models.CategoryDistracting:
			categories.Distracting = append(categories.Distracting, site)
		}
	}
	sort.Strings(categories.Productive)
	sort.Strings(categories.Distracting)
	return categories, nil
}

// SetCategory stores one field per site, so setting a new category replaces
// the old one and dual membership cannot occur
func (s *Store) SetCategory(ctx context.Context, site string, category models.Category) error {
	var err error
	switch category {
	case models.CategoryProductive, models.CategoryDistracting:
		err = s.client.HSet(ctx, s.categoriesKey(), site, string(category)).Err()
	default:
		err = s.client.HDel(ctx, s.categoriesKey(), site).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set site category: %w", err)
	}
	return nil
}

// GetSettings returns saved settings or defaults
func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	raw, err := s.client.Get(ctx, s.settingsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	settings := models.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return models.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

// SaveSettings stores settings as JSON
func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, s.settingsKey(), raw, 0).Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Export reads the full state
func (s *Store) Export(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	sites, err := s.client.SMembers(ctx, s.sitesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	for _, site := range sites {
		days, err := s.client.HGetAll(ctx, s.siteKey(site)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read site %s: %w", site, err)
		}
		for day, raw := range days {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse site time for %s/%s: %w", site, day, err)
			}
			snap.SiteData.Add(site, day, ms)
		}
	}

	if snap.BlockedSites, err = s.BlockedSites(ctx); err != nil {
		return nil, err
	}
	if snap.SiteCategories, err = s.Categories(ctx); err != nil {
		return nil, err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	snap.Settings = &settings

	return snap, nil
}

// Import writes the records present in snapshot inside one MULTI/EXEC
func (s *Store) Import(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot == nil {
		return nil
	}

	var settingsJSON []byte
	if snapshot.Settings != nil {
		raw, err := json.Marshal(snapshot.Settings)
		if err != nil {
			return fmt.Errorf("marshal settings: %w", err)
		}
		settingsJSON = raw
	}

	base := time.Now().UnixNano()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for site, days := range snapshot.SiteData {
			for day, ms := range days {
				pipe.HSet(ctx, s.siteKey(site), day, ms)
				pipe.SAdd(ctx, s.dayKey(day), site)
				pipe.SAdd(ctx, s.sitesKey(), site)
			}
		}

		if snapshot.BlockedSites != nil {
			pipe.Del(ctx, s.blockedKey())
			for i, site := range snapshot.BlockedSites {
				pipe.ZAddNX(ctx, s.blockedKey(), redis.Z{Score: float64(base + int64(i)), Member: site})
			}
		}

		cats := snapshot.SiteCategories
		if cats.Productive != nil || cats.Distracting != nil {
			pipe.Del(ctx, s.categoriesKey())
			for _, site := range cats.Distracting {
				pipe.HSet(ctx, s.categoriesKey(), site, string(models.CategoryDistracting))
			}
			// written last so dual membership resolves to productive
			for _, site := range cats.Productive {
				pipe.HSet(ctx, s.categoriesKey(), site, string(models.CategoryProductive))
			}
		}

		if settingsJSON != nil {
			pipe.Set(ctx, s.settingsKey(), settingsJSON, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear keys: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
