package config_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibog-labs/notifyd/internal/config"
)

// memStore is an in-memory SettingsStore for tests.
type memStore struct {
	settings config.Settings
	saves    int
}

func (m *memStore) Load() (config.Settings, error) { return m.settings, nil }
func (m *memStore) Save(s config.Settings) error   { m.settings = s; m.saves++; return nil }

func TestManager_DefaultsApplied(t *testing.T) {
	mgr, err := config.NewManager(&memStore{}, &config.AppConfig{})
	require.NoError(t, err)

	s := mgr.Get()
	assert.Equal(t, config.DefaultGatewayBaseURL, s.GatewayBaseURL)
	assert.Equal(t, config.DefaultTemplateName, s.TemplateName)
	assert.Equal(t, config.DefaultTemplateLanguage, s.TemplateLanguage)
	assert.Equal(t, config.DefaultTimeoutMs, s.TimeoutMs)
	assert.Equal(t, 10*time.Second, s.Timeout())
	assert.False(t, s.Enabled)
}

func TestManager_EnabledWithoutTokenDegradesToDisabled(t *testing.T) {
	store := &memStore{settings: config.Settings{Enabled: true}}
	mgr, err := config.NewManager(store, &config.AppConfig{})
	require.NoError(t, err)

	assert.False(t, mgr.Get().Enabled)

	require.NoError(t, mgr.Update(config.Settings{Enabled: true, APIToken: "tok-123"}))
	assert.True(t, mgr.Get().Enabled)
}

func TestManager_MaskedToken(t *testing.T) {
	store := &memStore{settings: config.Settings{Enabled: true, APIToken: "tok-123"}}
	mgr, err := config.NewManager(store, &config.AppConfig{})
	require.NoError(t, err)

	masked := mgr.Masked()
	assert.Equal(t, config.MaskedToken, masked.APIToken)
	// The real token is untouched.
	assert.Equal(t, "tok-123", mgr.Get().APIToken)
}

func TestManager_UpdatePreservesTokenOnSentinel(t *testing.T) {
	store := &memStore{settings: config.Settings{APIToken: "tok-123"}}
	mgr, err := config.NewManager(store, &config.AppConfig{})
	require.NoError(t, err)

	incoming := mgr.Masked()
	incoming.Enabled = true
	require.NoError(t, mgr.Update(incoming))

	assert.Equal(t, "tok-123", mgr.Get().APIToken)
	assert.Equal(t, "tok-123", store.settings.APIToken)
}

func TestManager_EnvLockedToken(t *testing.T) {
	t.Setenv("ZAPTRA_API_TOKEN", "env-tok")
	cfg := &config.AppConfig{APIToken: "env-tok"}

	mgr, err := config.NewManager(&memStore{}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "env-tok", mgr.Get().APIToken)
	assert.Equal(t, map[string]string{"api_token": "ZAPTRA_API_TOKEN"}, mgr.Locked())

	err = mgr.Update(config.Settings{APIToken: "other-tok"})
	assert.ErrorContains(t, err, "locked by environment variable ZAPTRA_API_TOKEN")
}

func TestManager_EnvLockedEnabled(t *testing.T) {
	t.Setenv("WHATSAPP_NOTIFICATIONS_ENABLED", "false")
	cfg := &config.AppConfig{Enabled: false}

	store := &memStore{settings: config.Settings{Enabled: true, APIToken: "tok"}}
	mgr, err := config.NewManager(store, cfg)
	require.NoError(t, err)

	assert.False(t, mgr.Get().Enabled)

	err = mgr.Update(config.Settings{Enabled: true, APIToken: "tok"})
	assert.ErrorContains(t, err, "WHATSAPP_NOTIFICATIONS_ENABLED")
}

func TestManager_ConcurrentGetAndUpdate(t *testing.T) {
	profiles := []config.Settings{
		{Enabled: true, APIToken: "tok-a", GatewayBaseURL: "https://a.example/api/wpbox", FallbackEnabled: true},
		{Enabled: true, APIToken: "tok-b", GatewayBaseURL: "https://b.example/api/wpbox", FallbackEnabled: true},
	}

	mgr, err := config.NewManager(&memStore{settings: profiles[0]}, &config.AppConfig{})
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				s := mgr.Get()
				// Every snapshot is one of the two profiles, never a mix.
				switch s.APIToken {
				case "tok-a":
					assert.Equal(t, "https://a.example/api/wpbox", s.GatewayBaseURL)
				case "tok-b":
					assert.Equal(t, "https://b.example/api/wpbox", s.GatewayBaseURL)
				default:
					t.Errorf("unexpected token %q", s.APIToken)
				}
				_ = mgr.Masked()
			}
		}()
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, mgr.Update(profiles[i%2]))
	}
	close(done)
	wg.Wait()
}

func TestManager_UpdateRestoresDefaultsForBlankFields(t *testing.T) {
	store := &memStore{}
	mgr, err := config.NewManager(store, &config.AppConfig{})
	require.NoError(t, err)

	require.NoError(t, mgr.Update(config.Settings{APIToken: "tok"}))

	s := mgr.Get()
	assert.Equal(t, config.DefaultGatewayBaseURL, s.GatewayBaseURL)
	assert.Equal(t, config.DefaultTemplateName, s.TemplateName)
	assert.Equal(t, 1, store.saves)
}
