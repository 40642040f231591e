// Package config loads the process-wide settings handed to each adapter
// constructor.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// DotEnvFile is loaded into the process environment before the environment
// is read. Variables already set take precedence.
var DotEnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	Nominatim Nominatim `mapstructure:"nominatim"`
	ORS       ORS       `mapstructure:"ors"`
	Server    Server    `mapstructure:"server"`
	Monitor   Monitor   `mapstructure:"monitor"`
	Telemetry Telemetry `mapstructure:"telemetry"`
	Log       Log       `mapstructure:"log"`
}

// Nominatim configures the geocoding adapter.
type Nominatim struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"` // required by the Nominatim usage policy
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ORS configures the routing adapter. An empty APIKey is accepted at load
// time; routing calls fail with a configuration error instead.
type ORS struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Server configures the SSE transport.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	BaseURL         string        `mapstructure:"base_url"`
	RateLimit       float64       `mapstructure:"rate_limit"` // inbound requests per second, 0 disables
	Burst           int           `mapstructure:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Monitor configures the health and metrics listener. Empty Addr disables it.
type Monitor struct {
	Addr string `mapstructure:"addr"`
}

// Telemetry configures trace export. Empty OTLPEndpoint disables it.
type Telemetry struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults used when neither a config file nor the environment sets a value.
const (
	DefaultNominatimBaseURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent        = "map-agents-assignment/1.0"
	DefaultORSBaseURL       = "https://api.openrouteservice.org"
	DefaultNominatimTimeout = 10 * time.Second
	DefaultORSTimeout       = 20 * time.Second
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Nominatim: Nominatim{
			BaseURL:   DefaultNominatimBaseURL,
			UserAgent: DefaultUserAgent,
			Timeout:   DefaultNominatimTimeout,
		},
		ORS: ORS{
			BaseURL: DefaultORSBaseURL,
			Timeout: DefaultORSTimeout,
		},
		Server: Server{
			Addr:            ":8080",
			BaseURL:         "http://localhost:8080",
			Burst:           10,
			ShutdownTimeout: 5 * time.Second,
		},
		Telemetry: Telemetry{
			ServiceName: "mapagent",
			Insecure:    true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing order of precedence. configFile may be empty, in
// which case mapagent.{yaml,json,toml} is looked up in the working directory.
//
// Environment variables use the MAPAGENT_ prefix (MAPAGENT_SERVER_ADDR ->
// server.addr). ORS_API_KEY and NOMINATIM_USER_AGENT are also honoured.
func Load(configFile string) (*Config, error) {
	if err := gotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("mapagent")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("MAPAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ors.api_key", "ORS_API_KEY", "MAPAGENT_ORS_API_KEY")
	_ = v.BindEnv("nominatim.user_agent", "NOMINATIM_USER_AGENT", "MAPAGENT_NOMINATIM_USER_AGENT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("nominatim.base_url", d.Nominatim.BaseURL)
	v.SetDefault("nominatim.user_agent", d.Nominatim.UserAgent)
	v.SetDefault("nominatim.timeout", d.Nominatim.Timeout)
	v.SetDefault("ors.base_url", d.ORS.BaseURL)
	v.SetDefault("ors.api_key", "")
	v.SetDefault("ors.timeout", d.ORS.Timeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("monitor.addr", d.Monitor.Addr)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks that configured values are usable.
func (c *Config) Validate() error {
	var errs []string

	for _, f := range []struct{ key, raw string }{
		{"nominatim.base_url", c.Nominatim.BaseURL},
		{"ors.base_url", c.ORS.BaseURL},
	} {
		u, err := url.Parse(f.raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s must be an absolute URL, got %q", f.key, f.raw))
		}
	}
	if strings.TrimSpace(c.Nominatim.UserAgent) == "" {
		errs = append(errs, "nominatim.user_agent is required")
	}
	if c.Nominatim.Timeout <= 0 {
		errs = append(errs, "nominatim.timeout must be positive")
	}
	if c.ORS.Timeout <= 0 {
		errs = append(errs, "ors.timeout must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst <= 0 {
		errs = append(errs, "server.burst must be positive when server.rate_limit is set")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l Log) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
