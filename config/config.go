// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// SourceConfig describes the upstream hiking catalog endpoints.
// TrailDetailURL takes one %d (trail id); ReviewPageURL takes two %d
// (trail id, page number). BaseURL absolutizes relative links such as the
// GPX download path.
type SourceConfig struct {
	BaseURL        string `yaml:"base_url"`
	TrailDetailURL string `yaml:"trail_detail_url"`
	ReviewPageURL  string `yaml:"review_page_url"`
	UserAgent      string `yaml:"user_agent"`
	TimeoutStr     string        `yaml:"timeout"`
	Timeout        time.Duration `yaml:"-"`
}

// SyncConfig tunes the scan orchestrator. PaceDelay is the deliberate
// per-ID throttle against the upstream site, not a performance knob.
type SyncConfig struct {
	PaceDelayStr       string        `yaml:"pace_delay"`
	PaceDelay          time.Duration `yaml:"-"`
	StalenessWindowStr string        `yaml:"staleness_window"`
	StalenessWindow    time.Duration `yaml:"-"`
	ProbeFailureLimit  int           `yaml:"probe_failure_limit"`
}

// CWAConfig points at the Central Weather Administration open-data endpoints.
// The API key comes from the environment (CWA_API_KEY), never from YAML.
type CWAConfig struct {
	APIKey         string `yaml:"-"`
	ObservationURL string `yaml:"observation_url"`
	RainfallURL    string `yaml:"rainfall_url"`
	CacheTTLStr    string        `yaml:"cache_ttl"`
	CacheTTL       time.Duration `yaml:"-"`
}

// AIConfig selects the Anthropic model used for safety recommendations.
// The API key comes from the environment (ANTHROPIC_API_KEY).
type AIConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Sync     SyncConfig     `yaml:"sync"`
	CWA      CWAConfig      `yaml:"cwa"`
	AI       AIConfig       `yaml:"ai"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads the YAML config file, layers .env / environment secrets on top,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	// Secrets live in .env during local development; a missing file is fine.
	_ = godotenv.Load()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://hiking.biji.co"
	}
	if c.Source.TrailDetailURL == "" {
		c.Source.TrailDetailURL = c.Source.BaseURL + "/index.php?q=trail&act=detail&id=%d"
	}
	if c.Source.ReviewPageURL == "" {
		c.Source.ReviewPageURL = c.Source.BaseURL + "/trail/ajax/load_reviews?id=%d&page=%d"
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = "Mozilla/5.0"
	}
	if c.Source.TimeoutStr == "" {
		c.Source.TimeoutStr = "15s"
	}
	if c.Sync.PaceDelayStr == "" {
		c.Sync.PaceDelayStr = "1s"
	}
	if c.Sync.StalenessWindowStr == "" {
		c.Sync.StalenessWindowStr = "144h" // 6 days
	}
	if c.Sync.ProbeFailureLimit == 0 {
		c.Sync.ProbeFailureLimit = 20
	}
	if c.CWA.ObservationURL == "" {
		c.CWA.ObservationURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore/O-A0001-001"
	}
	if c.CWA.RainfallURL == "" {
		c.CWA.RainfallURL = "https://opendata.cwa.gov.tw/api/v1/rest/datastore/O-A0002-001"
	}
	if c.CWA.CacheTTLStr == "" {
		c.CWA.CacheTTLStr = "10m"
	}
	if c.AI.Model == "" {
		c.AI.Model = "claude-3-5-haiku-latest"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	c.CWA.APIKey = os.Getenv("CWA_API_KEY")
	c.AI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
}

func (c *Config) parseDurations() error {
	var err error
	if c.Source.Timeout, err = time.ParseDuration(c.Source.TimeoutStr); err != nil {
		return fmt.Errorf("failed to parse source timeout: %w", err)
	}
	if c.Sync.PaceDelay, err = time.ParseDuration(c.Sync.PaceDelayStr); err != nil {
		return fmt.Errorf("failed to parse sync pace_delay: %w", err)
	}
	if c.Sync.StalenessWindow, err = time.ParseDuration(c.Sync.StalenessWindowStr); err != nil {
		return fmt.Errorf("failed to parse sync staleness_window: %w", err)
	}
	if c.CWA.CacheTTL, err = time.ParseDuration(c.CWA.CacheTTLStr); err != nil {
		return fmt.Errorf("failed to parse cwa cache_ttl: %w", err)
	}
	return nil
}

// Validate ensures the loaded configuration is coherent.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and dbname must be configured")
	}
	if !strings.Contains(c.Source.TrailDetailURL, "%d") {
		return fmt.Errorf("source trail_detail_url must contain a %%d trail id placeholder")
	}
	if strings.Count(c.Source.ReviewPageURL, "%d") != 2 {
		return fmt.Errorf("source review_page_url must contain %%d placeholders for trail id and page")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}
	if c.Sync.PaceDelay < 0 {
		return fmt.Errorf("sync pace_delay cannot be negative")
	}
	if c.Sync.StalenessWindow <= 0 {
		return fmt.Errorf("sync staleness_window must be positive")
	}
	if c.Sync.ProbeFailureLimit <= 0 {
		return fmt.Errorf("sync probe_failure_limit must be positive")
	}
	return nil
}
