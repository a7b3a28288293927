// Package config loads rinkcal settings and the association registry.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kareemsasa3/rinkcal/internal/types"
)

//go:embed defaults.yaml
var defaultYAML []byte

// EnvPrefix is prepended to every environment override (RINKCAL_FETCH_TIMEOUT).
const EnvPrefix = "RINKCAL"

// Config holds all runtime settings.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	UserAgent string `mapstructure:"user_agent"`

	Fetch     FetchConfig     `mapstructure:"fetch"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	API       APIConfig       `mapstructure:"api"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Rules     RulesConfig     `mapstructure:"rules"`

	Associations []AssociationConfig `mapstructure:"associations"`
}

// FetchConfig controls the polite fetcher.
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MinHostGap        time.Duration `mapstructure:"min_host_gap"`
	HostJitter        time.Duration `mapstructure:"host_jitter"`
	ThrottleFactor    float64       `mapstructure:"throttle_factor"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	RetryJitter       time.Duration `mapstructure:"retry_jitter"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"` // 0 disables the global ceiling
	RespectRobots     bool          `mapstructure:"respect_robots"`
}

// DiscoveryConfig controls site traversal.
type DiscoveryConfig struct {
	MaxPages          int           `mapstructure:"max_pages"`
	HeadlessTimeout   time.Duration `mapstructure:"headless_timeout"`
	HeadlessNoSandbox bool          `mapstructure:"headless_no_sandbox"`
	ChromePath        string        `mapstructure:"chrome_path"`
	MenuClickWait     time.Duration `mapstructure:"menu_click_wait"`
	SubmenuClickWait  time.Duration `mapstructure:"submenu_click_wait"`
}

// BatchConfig controls multi-association runs.
type BatchConfig struct {
	Size  int           `mapstructure:"size"`
	Delay time.Duration `mapstructure:"delay"`
}

// RedisConfig points at the job store. An empty Addr selects in-memory storage.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

// DatabaseConfig points at the SQLite history file. Empty disables history.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// ScheduleConfig holds the cron expression for recurring batch scrapes.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// RulesConfig extends the built-in classification vocabularies.
type RulesConfig struct {
	NonTeamNames      []string `mapstructure:"non_team_names"`
	NonTeamURLs       []string `mapstructure:"non_team_urls"`
	AggregateKeywords []string `mapstructure:"aggregate_keywords"`
}

// ProbeRange is an inclusive span of numeric team IDs to enumerate.
type ProbeRange struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// ProbeConfig enables ID harvesting and range enumeration for one association.
type ProbeConfig struct {
	Ranges []ProbeRange `mapstructure:"ranges"`
}

// AssociationConfig is one registry entry plus its hand-curated extras.
type AssociationConfig struct {
	Name      string              `mapstructure:"name"`
	BaseURL   string              `mapstructure:"base_url"`
	Overrides []string            `mapstructure:"overrides"`
	SeedTeams []types.ScrapedTeam `mapstructure:"seed_teams"`
	Probe     *ProbeConfig        `mapstructure:"probe"`
}

// Association returns the core identity of the entry.
func (a AssociationConfig) Association() types.Association {
	return types.Association{Name: a.Name, BaseURL: a.BaseURL}
}

// Load reads the embedded defaults, then merges the config file at path (or
// rinkcal.yaml from ./configs or .), then RINKCAL_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rinkcal")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the embedded defaults without consulting files or env.
func Default() *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		panic(fmt.Sprintf("embedded defaults unreadable: %v", err))
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("embedded defaults undecodable: %v", err))
	}
	return &cfg
}

// Validate checks settings the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}
	if c.Fetch.ThrottleFactor < 1 {
		return fmt.Errorf("fetch.throttle_factor must be at least 1")
	}
	if c.Discovery.MaxPages <= 0 {
		return fmt.Errorf("discovery.max_pages must be positive")
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive")
	}
	seen := make(map[string]bool, len(c.Associations))
	for i, a := range c.Associations {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.BaseURL) == "" {
			return fmt.Errorf("associations[%d]: name and base_url are required", i)
		}
		key := strings.ToLower(a.Name)
		if seen[key] {
			return fmt.Errorf("associations[%d]: duplicate name %q", i, a.Name)
		}
		seen[key] = true
		if a.Probe != nil {
			for _, r := range a.Probe.Ranges {
				if r.End < r.Start {
					return fmt.Errorf("associations[%d]: probe range %d-%d is inverted", i, r.Start, r.End)
				}
			}
		}
	}
	return nil
}

// Profile finds the registry entry for an association by name, case-insensitively.
func (c *Config) Profile(name string) (AssociationConfig, bool) {
	for _, a := range c.Associations {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return AssociationConfig{}, false
}

// Find matches an association by exact name first, then by case-insensitive substring.
func (c *Config) Find(query string) (AssociationConfig, bool) {
	if a, ok := c.Profile(query); ok {
		return a, true
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return AssociationConfig{}, false
	}
	for _, a := range c.Associations {
		if strings.Contains(strings.ToLower(a.Name), q) {
			return a, true
		}
	}
	return AssociationConfig{}, false
}

// AssociationList returns the core identities of every registry entry.
func (c *Config) AssociationList() []types.Association {
	out := make([]types.Association, 0, len(c.Associations))
	for _, a := range c.Associations {
		out = append(out, a.Association())
	}
	return out
}
