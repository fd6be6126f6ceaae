package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Config holds runtime settings of the offline sync engine and its CLI.
//
// Units: every interval is a time.Duration.
type Config struct {
	ServerURL           string
	DatabaseDSN         string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	DegradedLatency     time.Duration

	// StaleAfter is how long a processing action may stay silent before it
	// is read back as offline.
	StaleAfter     time.Duration
	SyncTaskName   string
	SyncMaxRetries int
	SyncBackoff    time.Duration

	CacheMaxEntries int
	CacheMaxAge     time.Duration

	AssetStore     string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	LogFile  string
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabaseDSN = "offlinesync.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.DegradedLatency = 2 * time.Second
	c.StaleAfter = 3 * time.Second
	c.SyncTaskName = "OfflineActionSync"
	c.SyncMaxRetries = 3
	c.SyncBackoff = time.Second
	c.CacheMaxEntries = 200
	c.CacheMaxAge = 24 * time.Hour
	c.AssetStore = "sqlite"
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the JSON file named by the config flag (if any) and finally the flags that
// were set explicitly. Later sources take precedence over earlier ones.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := fs.GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server url is required")
	}
	if c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("online check interval must be positive")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale-after must be positive")
	}
	if c.SyncMaxRetries < 0 {
		return fmt.Errorf("sync retries must not be negative")
	}
	switch c.AssetStore {
	case "sqlite":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 asset store needs a bucket")
		}
	default:
		return fmt.Errorf("unknown asset store %q", c.AssetStore)
	}
	return nil
}
