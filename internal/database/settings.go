package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/benvon/sitetime/internal/models"
)

const defaultSettingsConfigKey = "default"

// SettingsRepository handles user settings in the database
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings returns the stored settings, or defaults when none are saved
func (r *SettingsRepository) GetSettings(ctx context.Context) (models.Settings, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
		SELECT value FROM settings WHERE config_key = $1
	`), defaultSettingsConfigKey)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}

	settings := models.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return models.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

// SaveSettings upserts the settings document
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	return r.save(ctx, r.db, settings)
}

func (r *SettingsRepository) save(ctx context.Context, q queryer, settings models.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	now := time.Now().UTC()
	_, err = q.ExecContext(ctx, r.db.rebind(`
		INSERT INTO settings (config_key, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`), defaultSettingsConfigKey, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
