package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nibog-labs/notifyd/internal/config"
)

// SQLiteSettingsStore implements config.SettingsStore backed by a SQLite database.
type SQLiteSettingsStore struct {
	db *sql.DB
}

// NewSQLiteSettingsStore returns a new SQLiteSettingsStore.
func NewSQLiteSettingsStore(db *sql.DB) *SQLiteSettingsStore {
	return &SQLiteSettingsStore{db: db}
}

// Load returns the persisted notification settings. If no row exists yet, it
// inserts a default row and returns zero-value settings (the config.Manager
// fills in the defaults).
func (s *SQLiteSettingsStore) Load() (config.Settings, error) {
	var st config.Settings
	var enabled, fallback int

	ctx := context.Background()
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, gateway_base_url, api_token, template_name,
		       template_language, timeout_ms, fallback_enabled
		FROM notification_settings WHERE id = 1`).Scan(
		&enabled, &st.GatewayBaseURL, &st.APIToken, &st.TemplateName,
		&st.TemplateLanguage, &st.TimeoutMs, &fallback,
	)
	if errors.Is(err, sql.ErrNoRows) {
		st = config.Settings{FallbackEnabled: true}
		if err := s.Save(st); err != nil {
			return st, fmt.Errorf("initializing default settings: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("loading settings: %w", err)
	}
	st.Enabled = enabled != 0
	st.FallbackEnabled = fallback != 0
	return st, nil
}

// Save persists the notification settings (single row, id=1).
func (s *SQLiteSettingsStore) Save(settings config.Settings) error {
	enabled := 0
	if settings.Enabled {
		enabled = 1
	}
	fallback := 0
	if settings.FallbackEnabled {
		fallback = 1
	}

	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_settings
			(id, enabled, gateway_base_url, api_token, template_name,
			 template_language, timeout_ms, fallback_enabled)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			gateway_base_url = excluded.gateway_base_url,
			api_token = excluded.api_token,
			template_name = excluded.template_name,
			template_language = excluded.template_language,
			timeout_ms = excluded.timeout_ms,
			fallback_enabled = excluded.fallback_enabled`,
		enabled, settings.GatewayBaseURL, settings.APIToken, settings.TemplateName,
		settings.TemplateLanguage, settings.TimeoutMs, fallback,
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
