package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"listraksync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Listrak  ListrakConfig  `yaml:"listrak"`
	Worker   WorkerConfig   `yaml:"worker"`
	Feed     FeedConfig     `yaml:"feed"`
	API      APIConfig      `yaml:"api"`
	Backup   BackupConfig   `yaml:"backup"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type ListrakConfig struct {
	BaseURL   string          `yaml:"base_url"`
	TokenURL  string          `yaml:"token_url"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Settings  Settings        `yaml:"settings"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WorkerConfig struct {
	Concurrency   int           `yaml:"concurrency"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PageSize      int           `yaml:"page_size"`
	QueueKey      string        `yaml:"queue_key"`
}

type FeedConfig struct {
	FileName  string `yaml:"file_name"`
	LocalDir  string `yaml:"local_dir"`
	RemoteDir string `yaml:"remote_dir"`
	PageSize  int    `yaml:"page_size"`
}

type APIConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Port      int             `yaml:"port"`
	Auth      APIAuthConfig   `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

// Settings holds the connector's opaque key/value configuration. Scopes
// override individual keys; anything a scope leaves unset falls back to the
// global value.
type Settings struct {
	Global map[string]string            `yaml:"global"`
	Scopes map[string]map[string]string `yaml:"scopes"`
}

// Get resolves name for scopeID, falling back to the global value. An empty
// scopeID reads the global value only.
func (s Settings) Get(name, scopeID string) string {
	if scopeID != "" {
		if scoped, ok := s.Scopes[scopeID]; ok {
			if v, ok := scoped[name]; ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return strings.TrimSpace(s.Global[name])
}

// Bool resolves a feature flag. Unparseable values count as disabled.
func (s Settings) Bool(name, scopeID string) bool {
	v, err := strconv.ParseBool(s.Get(name, scopeID))
	return err == nil && v
}

// AnyBool reports whether the flag is enabled globally or by any
// configured scope.
func (s Settings) AnyBool(name string) bool {
	if s.Bool(name, "") {
		return true
	}
	for scopeID := range s.Scopes {
		if s.Bool(name, scopeID) {
			return true
		}
	}
	return false
}

// Credentials returns the client id/secret pair of the given kind.
func (s Settings) Credentials(kind models.CredentialKind, scopeID string) (string, string) {
	switch kind {
	case models.CredentialsEmail:
		return s.Get(models.SettingEmailClientID, scopeID), s.Get(models.SettingEmailClientSecret, scopeID)
	default:
		return s.Get(models.SettingDataClientID, scopeID), s.Get(models.SettingDataClientSecret, scopeID)
	}
}

// HasCredentials reports whether both halves of the pair are configured.
func (s Settings) HasCredentials(kind models.CredentialKind, scopeID string) bool {
	id, secret := s.Credentials(kind, scopeID)
	return id != "" && secret != ""
}

func Load(configPath string) (*Config, error) {
	// .env is optional; the process environment may already carry everything.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Listrak.Timeout < 0 {
		return errors.New("listrak timeout must be >= 0")
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("worker concurrency must be >= 1")
	}
	if c.API.Enabled && c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api auth is enabled but no api keys are configured")
	}
	for id := range c.Listrak.Settings.Scopes {
		if strings.TrimSpace(id) == "" {
			return errors.New("listrak settings contain an empty scope id")
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "listrak-sync"
	}
	if c.Listrak.BaseURL == "" {
		c.Listrak.BaseURL = "https://api.listrak.com"
	}
	if c.Listrak.TokenURL == "" {
		c.Listrak.TokenURL = "https://auth.listrak.com/OAuth2/Token"
	}
	if c.Listrak.Timeout == 0 {
		c.Listrak.Timeout = 30 * time.Second
	}
	if c.Listrak.RateLimit.RPS == 0 {
		c.Listrak.RateLimit.RPS = 10
	}
	if c.Listrak.RateLimit.Burst == 0 {
		c.Listrak.RateLimit.Burst = 5
	}
	if c.Listrak.Settings.Global == nil {
		c.Listrak.Settings.Global = map[string]string{}
	}
	if c.Listrak.Settings.Global[models.SettingFTPHost] == "" {
		c.Listrak.Settings.Global[models.SettingFTPHost] = "ftp.listrak.com:21"
	}

	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.RetryInterval == 0 {
		c.Worker.RetryInterval = models.RetrySweepInterval * time.Second
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = 2 * time.Second
	}
	if c.Worker.PageSize == 0 {
		c.Worker.PageSize = models.DefaultPageSize
	}
	if c.Worker.QueueKey == "" {
		c.Worker.QueueKey = "listrak:jobs"
	}

	if c.Feed.FileName == "" {
		c.Feed.FileName = "listrak_products.txt"
	}
	if c.Feed.LocalDir == "" {
		c.Feed.LocalDir = "var/feeds"
	}
	if c.Feed.PageSize == 0 {
		c.Feed.PageSize = models.DefaultFeedPageSize
	}

	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "var/backups"
	}
}
