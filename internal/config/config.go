package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/crimson-sun/fortiwatch/internal/connector"
	"github.com/crimson-sun/fortiwatch/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. FORTIWATCH_APPLIANCE_HOST.
const EnvPrefix = "FORTIWATCH"

// Config holds all fortiwatch configuration.
type Config struct {
	Appliance ApplianceConfig `mapstructure:"appliance"`
	Poll      PollConfig      `mapstructure:"poll"`
	Log       LogConfig       `mapstructure:"log"`
	Output    OutputConfig    `mapstructure:"output"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ApplianceConfig describes the appliance to poll.
type ApplianceConfig struct {
	Protocol     string `mapstructure:"protocol"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PollInterval int    `mapstructure:"poll_interval"` // seconds
	Insecure     bool   `mapstructure:"insecure"`
	Mock         bool   `mapstructure:"mock"`
}

// PollConfig tunes the fetch cycle.
type PollConfig struct {
	Schedule   string        `mapstructure:"schedule"` // cron expression; overrides poll_interval
	BufferSize int           `mapstructure:"buffer_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
	File   string `mapstructure:"file"`   // empty: stderr
}

// OutputConfig controls where records are written.
type OutputConfig struct {
	Pretty         bool     `mapstructure:"pretty"`
	Archive        string   `mapstructure:"archive"` // NDJSON archive path
	ArchiveMaxSize int64    `mapstructure:"archive_max_size"`
	ArchiveLevels  []string `mapstructure:"archive_levels"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty: disabled
}

// Dir returns the per-user configuration directory (~/.fortiwatch).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".fortiwatch"), nil
}

// Load reads configuration with the precedence environment > config file >
// saved settings > defaults. cfgFile may be empty, in which case
// config.yaml is looked up in the working directory and ~/.fortiwatch. A
// nil store skips saved settings.
func Load(cfgFile string, store *Store) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if store != nil {
		if err := applyStore(v, store); err != nil {
			return nil, err
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("appliance.protocol", d.Protocol)
	v.SetDefault("appliance.host", "")
	v.SetDefault("appliance.port", d.Port)
	v.SetDefault("appliance.username", "")
	v.SetDefault("appliance.password", "")
	v.SetDefault("appliance.poll_interval", d.RefreshInterval)
	v.SetDefault("appliance.insecure", false)
	v.SetDefault("appliance.mock", true)

	v.SetDefault("poll.schedule", "")
	v.SetDefault("poll.buffer_size", 100)
	v.SetDefault("poll.max_retries", 3)
	v.SetDefault("poll.retry_delay", "1s")
	v.SetDefault("poll.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("output.pretty", false)
	v.SetDefault("output.archive", "")
	v.SetDefault("output.archive_max_size", 0)
	v.SetDefault("output.archive_levels", []string{})

	v.SetDefault("metrics.addr", "")
}

// applyStore layers saved settings over the built-in defaults.
func applyStore(v *viper.Viper, store *Store) error {
	mock, err := store.LoadMockMode()
	if err != nil {
		return err
	}
	v.SetDefault("appliance.mock", mock)

	s, err := store.LoadSettings()
	if err != nil || s == nil {
		return err
	}
	set := func(key, val string) {
		if val != "" {
			v.SetDefault(key, val)
		}
	}
	set("appliance.host", s.Host)
	set("appliance.port", s.Port)
	set("appliance.protocol", s.Protocol)
	set("appliance.username", s.Username)
	set("appliance.password", s.Password)
	if s.RefreshInterval > 0 {
		v.SetDefault("appliance.poll_interval", s.RefreshInterval)
	}
	if s.Insecure {
		v.SetDefault("appliance.insecure", true)
	}
	return nil
}

// Validate checks the invariants that do not depend on the selected source.
func (c *Config) Validate() error {
	if err := c.Connector().Validate(); err != nil {
		return fmt.Errorf("invalid appliance config: %w", err)
	}
	if _, err := strconv.Atoi(c.Appliance.Port); err != nil && !c.Connector().UseMock() {
		return fmt.Errorf("invalid appliance port %q", c.Appliance.Port)
	}
	if c.Poll.BufferSize < 1 {
		return fmt.Errorf("poll.buffer_size must be positive, got %d", c.Poll.BufferSize)
	}
	if c.Poll.MaxRetries < 0 {
		return fmt.Errorf("poll.max_retries must not be negative, got %d", c.Poll.MaxRetries)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", f)
	}
	if _, err := c.ArchiveLevels(); err != nil {
		return err
	}
	return nil
}

// Connector returns the connection settings for the connector registry.
func (c *Config) Connector() connector.ConnectorConfig {
	a := c.Appliance
	return connector.ConnectorConfig{
		Provider:     "fortigate",
		Protocol:     a.Protocol,
		Host:         a.Host,
		Port:         a.Port,
		Username:     a.Username,
		Password:     a.Password,
		PollInterval: a.PollInterval,
		Insecure:     a.Insecure,
		Mock:         a.Mock,
	}
}

// Interval returns the poll interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Appliance.PollInterval) * time.Second
}

// ArchiveLevels parses output.archive_levels.
func (c *Config) ArchiveLevels() ([]model.Level, error) {
	var levels []model.Level
	for _, s := range c.Output.ArchiveLevels {
		lv := model.Level(strings.ToLower(strings.TrimSpace(s)))
		switch lv {
		case model.LevelError, model.LevelWarning, model.LevelInfo, model.LevelSuccess:
			levels = append(levels, lv)
		default:
			return nil, fmt.Errorf("unknown archive level %q", s)
		}
	}
	return levels, nil
}
