package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/workspace-shell/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/")
	t.Setenv("ENGINE_BOOT_TIMEOUT", "10ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.StorageDriverRedis, cfg.Storage.Driver)
	assert.True(t, cfg.NeedsRedis())
	assert.GreaterOrEqual(t, cfg.Engine.BootTimeout.Seconds(), 1.0, "boot timeout is clamped")
}

func TestLoadConfig_InvalidDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "etcd")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() config.AppConfig {
		return config.AppConfig{
			Backend: config.BackendConfig{BaseURL: "https://api.example.com"},
			Auth: config.AuthConfig{
				Mode:  config.AuthModeOAuth,
				OAuth: config.OAuthConfig{DiscoveryURL: "https://idp.example.com"},
			},
		}
	}

	cfg := valid()
	require.NoError(t, ValidateConfig(&cfg))
	require.Error(t, ValidateConfig(nil))

	cfg = valid()
	cfg.Backend.BaseURL = ""
	require.Error(t, ValidateConfig(&cfg))

	cfg = valid()
	cfg.Auth.OAuth.DiscoveryURL = ""
	require.Error(t, ValidateConfig(&cfg))

	cfg = valid()
	cfg.Auth.Mode = config.AuthModeMock
	require.Error(t, ValidateConfig(&cfg))
	cfg.IsDev = true
	require.NoError(t, ValidateConfig(&cfg))
}
