package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/offlinesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. Absent members keep the
// current value.
type JsonConfig struct {
	ServerURL           string          `json:"server_url"`
	DatabaseDSN         string          `json:"database_dsn"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	DegradedLatency     *timex.Duration `json:"degraded_latency"`
	StaleAfter          *timex.Duration `json:"stale_after"`
	SyncTaskName        string          `json:"sync_task_name"`
	SyncMaxRetries      *int            `json:"sync_max_retries"`
	SyncBackoff         *timex.Duration `json:"sync_backoff"`
	CacheMaxEntries     *int            `json:"cache_max_entries"`
	CacheMaxAge         *timex.Duration `json:"cache_max_age"`
	AssetStore          string          `json:"asset_store"`
	S3Bucket            string          `json:"s3_bucket"`
	S3Region            string          `json:"s3_region"`
	S3BaseEndpoint      string          `json:"s3_base_endpoint"`
	S3AccessKey         string          `json:"s3_access_key"`
	S3SecretKey         string          `json:"s3_secret_key"`
	LogFile             string          `json:"log_file"`
	LogLevel            string          `json:"log_level"`
}

// parseJSON overlays cfg with values loaded from the JSON file at path.
// An empty path loads nothing.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.ServerURL, jc.ServerURL)
	setString(&cfg.DatabaseDSN, jc.DatabaseDSN)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.DegradedLatency, jc.DegradedLatency)
	setDuration(&cfg.StaleAfter, jc.StaleAfter)
	setString(&cfg.SyncTaskName, jc.SyncTaskName)
	setInt(&cfg.SyncMaxRetries, jc.SyncMaxRetries)
	setDuration(&cfg.SyncBackoff, jc.SyncBackoff)
	setInt(&cfg.CacheMaxEntries, jc.CacheMaxEntries)
	setDuration(&cfg.CacheMaxAge, jc.CacheMaxAge)
	setString(&cfg.AssetStore, jc.AssetStore)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
