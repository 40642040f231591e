package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NERVsystems/mapagent/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultNominatimBaseURL, cfg.Nominatim.BaseURL)
	assert.Equal(t, "map-agents-assignment/1.0", cfg.Nominatim.UserAgent)
	assert.Equal(t, 10*time.Second, cfg.Nominatim.Timeout)
	assert.Equal(t, config.DefaultORSBaseURL, cfg.ORS.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.ORS.Timeout)
	assert.Empty(t, cfg.Monitor.Addr)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ORS_API_KEY", "test-key")
	t.Setenv("NOMINATIM_USER_AGENT", "mapagent-test/2.0")
	t.Setenv("MAPAGENT_NOMINATIM_TIMEOUT", "3s")
	t.Setenv("MAPAGENT_SERVER_ADDR", ":9999")
	t.Setenv("MAPAGENT_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.ORS.APIKey)
	assert.Equal(t, "mapagent-test/2.0", cfg.Nominatim.UserAgent)
	assert.Equal(t, 3*time.Second, cfg.Nominatim.Timeout)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ORS_API_KEY=from-dotenv\n"), 0o600))

	// gotenv writes into the process environment; restore it afterwards.
	t.Setenv("ORS_API_KEY", "")
	require.NoError(t, os.Unsetenv("ORS_API_KEY"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.ORS.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "custom.yaml")
	content := []byte("ors:\n  base_url: http://localhost:8082/ors\nmonitor:\n  addr: \":9090\"\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8082/ors", cfg.ORS.BaseURL)
	assert.Equal(t, ":9090", cfg.Monitor.Addr)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := config.Load("does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*config.Config) {},
		},
		{
			name:    "relative base url",
			mutate:  func(c *config.Config) { c.ORS.BaseURL = "/v2" },
			wantErr: "ors.base_url must be an absolute URL",
		},
		{
			name:    "blank user agent",
			mutate:  func(c *config.Config) { c.Nominatim.UserAgent = "  " },
			wantErr: "nominatim.user_agent is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *config.Config) { c.Nominatim.Timeout = 0 },
			wantErr: "nominatim.timeout must be positive",
		},
		{
			name: "rate limit without burst",
			mutate: func(c *config.Config) {
				c.Server.RateLimit = 5
				c.Server.Burst = 0
			},
			wantErr: "server.burst must be positive",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Log.Format = "xml" },
			wantErr: "log.format must be text or json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
