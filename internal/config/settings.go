package config

import (
	"fmt"
	"maps"
	"os"
	"sync"
	"time"
)

// MaskedToken is the sentinel returned in place of the real API token and
// accepted on update to mean "keep the stored token".
const MaskedToken = "***"

// Defaults applied when a settings field has never been saved.
const (
	DefaultGatewayBaseURL   = "https://demo.zaptra.in/api/wpbox"
	DefaultTemplateName     = "booking_confirmation_nibog"
	DefaultTemplateLanguage = "en_US"
	DefaultTimeoutMs        = 10000
)

// Settings holds the notification subsystem configuration. Get returns an
// immutable per-read copy; concurrent updates go through the Manager.
type Settings struct {
	Enabled          bool   `json:"enabled"`
	GatewayBaseURL   string `json:"gateway_base_url"`
	APIToken         string `json:"api_token"`
	TemplateName     string `json:"template_name"`
	TemplateLanguage string `json:"template_language"`
	TimeoutMs        int    `json:"timeout_ms"`
	// FallbackEnabled allows a plain-text message to be sent when a template
	// send fails with a parameter-mismatch error.
	FallbackEnabled bool `json:"fallback_enabled"`
}

// Timeout returns the per-call gateway timeout as a duration.
func (s Settings) Timeout() time.Duration {
	if s.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// SettingsStore defines the interface for persisting notification settings.
type SettingsStore interface {
	Load() (Settings, error)
	Save(settings Settings) error
}

// Manager loads and saves notification settings via a SettingsStore, and
// exposes which fields are locked by environment variables. Safe for
// concurrent use: sends read settings from worker goroutines while updates
// arrive on HTTP handler goroutines. The locked map is written only during
// construction.
type Manager struct {
	store  SettingsStore
	locked map[string]string // field name -> env var name

	mu       sync.RWMutex
	settings Settings
}

// NewManager creates a Manager backed by the given SettingsStore. Fields set
// via AppConfig environment variables are marked as locked and always return
// the env value.
func NewManager(store SettingsStore, cfg *AppConfig) (*Manager, error) {
	m := &Manager{
		store:  store,
		locked: make(map[string]string),
	}

	if cfg.APIToken != "" && os.Getenv("ZAPTRA_API_TOKEN") != "" {
		m.locked["api_token"] = "ZAPTRA_API_TOKEN"
	}
	if cfg.GatewayBaseURL != "" && os.Getenv("ZAPTRA_API_URL") != "" {
		m.locked["gateway_base_url"] = "ZAPTRA_API_URL"
	}
	if os.Getenv("WHATSAPP_NOTIFICATIONS_ENABLED") != "" {
		m.locked["enabled"] = "WHATSAPP_NOTIFICATIONS_ENABLED"
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// Apply env-locked overrides so Get() always returns env values for locked fields.
	if _, ok := m.locked["api_token"]; ok {
		m.settings.APIToken = cfg.APIToken
	}
	if _, ok := m.locked["gateway_base_url"]; ok {
		m.settings.GatewayBaseURL = cfg.GatewayBaseURL
	}
	if _, ok := m.locked["enabled"]; ok {
		m.settings.Enabled = cfg.Enabled
	}
	if cfg.TimeoutMs > 0 && m.settings.TimeoutMs == 0 {
		m.settings.TimeoutMs = cfg.TimeoutMs
	}

	return m, nil
}

func (m *Manager) load() error {
	settings, err := m.store.Load()
	if err != nil {
		return err
	}
	m.settings = settings

	// Fill in any missing defaults.
	if m.settings.GatewayBaseURL == "" {
		m.settings.GatewayBaseURL = DefaultGatewayBaseURL
	}
	if m.settings.TemplateName == "" {
		m.settings.TemplateName = DefaultTemplateName
	}
	if m.settings.TemplateLanguage == "" {
		m.settings.TemplateLanguage = DefaultTemplateLanguage
	}
	if m.settings.TimeoutMs == 0 {
		m.settings.TimeoutMs = DefaultTimeoutMs
	}
	return nil
}

// Get returns a copy of the current settings. When notifications are enabled
// without a configured API token the copy reports Enabled=false, matching the
// gateway's fail-fast behavior.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	s := m.settings
	m.mu.RUnlock()

	if s.Enabled && s.APIToken == "" {
		s.Enabled = false
	}
	return s
}

// Masked returns the current settings with the API token replaced by the mask
// sentinel, suitable for returning from the HTTP API.
func (m *Manager) Masked() Settings {
	s := m.Get()
	if s.APIToken != "" {
		s.APIToken = MaskedToken
	}
	return s
}

// Locked returns the map of field names to env var names for locked settings.
func (m *Manager) Locked() map[string]string {
	result := make(map[string]string, len(m.locked))
	maps.Copy(result, m.locked)
	return result
}

// Update persists allowed fields, skipping any locked ones. An incoming token
// equal to the mask sentinel keeps the stored token. Returns an error if the
// caller attempts to change a locked field.
func (m *Manager) Update(incoming Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if incoming.APIToken == MaskedToken {
		incoming.APIToken = m.settings.APIToken
	}
	if env, ok := m.locked["api_token"]; ok {
		if incoming.APIToken != "" && incoming.APIToken != m.settings.APIToken {
			return fmt.Errorf("api_token is locked by environment variable %s", env)
		}
		incoming.APIToken = m.settings.APIToken
	}
	if env, ok := m.locked["gateway_base_url"]; ok {
		if incoming.GatewayBaseURL != "" && incoming.GatewayBaseURL != m.settings.GatewayBaseURL {
			return fmt.Errorf("gateway_base_url is locked by environment variable %s", env)
		}
		incoming.GatewayBaseURL = m.settings.GatewayBaseURL
	}
	if env, ok := m.locked["enabled"]; ok {
		if incoming.Enabled != m.settings.Enabled {
			return fmt.Errorf("enabled is locked by environment variable %s", env)
		}
	}

	m.settings = incoming

	// Blank fields fall back to defaults rather than persisting empty values.
	if m.settings.GatewayBaseURL == "" {
		m.settings.GatewayBaseURL = DefaultGatewayBaseURL
	}
	if m.settings.TemplateName == "" {
		m.settings.TemplateName = DefaultTemplateName
	}
	if m.settings.TemplateLanguage == "" {
		m.settings.TemplateLanguage = DefaultTemplateLanguage
	}
	if m.settings.TimeoutMs == 0 {
		m.settings.TimeoutMs = DefaultTimeoutMs
	}

	if err := m.store.Save(m.settings); err != nil {
		return fmt.Errorf("persisting settings: %w", err)
	}
	return nil
}
