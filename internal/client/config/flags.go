package config

import (
	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagConfig          = "config"
	FlagServer          = "server"
	FlagDB              = "db"
	FlagCheckInterval   = "check-interval"
	FlagTimeout         = "timeout"
	FlagDegradedLatency = "degraded-latency"
	FlagStaleAfter      = "stale-after"
	FlagSyncTask        = "sync-task"
	FlagSyncRetries     = "sync-retries"
	FlagSyncBackoff     = "sync-backoff"
	FlagCacheMaxEntries = "cache-max-entries"
	FlagCacheMaxAge     = "cache-max-age"
	FlagAssetStore      = "asset-store"
	FlagS3Bucket        = "s3-bucket"
	FlagS3Region        = "s3-region"
	FlagS3Endpoint      = "s3-endpoint"
	FlagS3AccessKey     = "s3-access-key"
	FlagS3SecretKey     = "s3-secret-key"
	FlagLogFile         = "log-file"
	FlagLogLevel        = "log-level"
)

// RegisterFlags defines every configuration flag on fs, with the built-in
// defaults as flag defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to a JSON config file")
	fs.StringP(FlagServer, "s", d.ServerURL, "server base url")
	fs.StringP(FlagDB, "d", d.DatabaseDSN, "local database file")
	fs.Duration(FlagCheckInterval, d.OnlineCheckInterval, "connectivity check interval")
	fs.Duration(FlagTimeout, d.RequestTimeout, "request timeout")
	fs.Duration(FlagDegradedLatency, d.DegradedLatency, "probe latency above which the link counts as degraded")
	fs.Duration(FlagStaleAfter, d.StaleAfter, "age after which an in-flight action is retried")
	fs.String(FlagSyncTask, d.SyncTaskName, "name of the deferred sync task")
	fs.Int(FlagSyncRetries, d.SyncMaxRetries, "retries of a failed sync trigger")
	fs.Duration(FlagSyncBackoff, d.SyncBackoff, "first retry delay of a failed sync trigger")
	fs.Int(FlagCacheMaxEntries, d.CacheMaxEntries, "max entries per strategy cache (0 = unbounded)")
	fs.Duration(FlagCacheMaxAge, d.CacheMaxAge, "max age of strategy cache entries (0 = unbounded)")
	fs.String(FlagAssetStore, d.AssetStore, "asset store: sqlite or s3")
	fs.String(FlagS3Bucket, d.S3Bucket, "s3 bucket for assets")
	fs.String(FlagS3Region, d.S3Region, "s3 region")
	fs.String(FlagS3Endpoint, d.S3BaseEndpoint, "s3-compatible endpoint url")
	fs.String(FlagS3AccessKey, d.S3AccessKey, "s3 access key")
	fs.String(FlagS3SecretKey, d.S3SecretKey, "s3 secret key")
	fs.String(FlagLogFile, d.LogFile, "log file (rotated); stderr when empty")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
}

// applyFlags copies the flags that were set explicitly into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagServer:
			cfg.ServerURL, err = fs.GetString(f.Name)
		case FlagDB:
			cfg.DatabaseDSN, err = fs.GetString(f.Name)
		case FlagCheckInterval:
			cfg.OnlineCheckInterval, err = fs.GetDuration(f.Name)
		case FlagTimeout:
			cfg.RequestTimeout, err = fs.GetDuration(f.Name)
		case FlagDegradedLatency:
			cfg.DegradedLatency, err = fs.GetDuration(f.Name)
		case FlagStaleAfter:
			cfg.StaleAfter, err = fs.GetDuration(f.Name)
		case FlagSyncTask:
			cfg.SyncTaskName, err = fs.GetString(f.Name)
		case FlagSyncRetries:
			cfg.SyncMaxRetries, err = fs.GetInt(f.Name)
		case FlagSyncBackoff:
			cfg.SyncBackoff, err = fs.GetDuration(f.Name)
		case FlagCacheMaxEntries:
			cfg.CacheMaxEntries, err = fs.GetInt(f.Name)
		case FlagCacheMaxAge:
			cfg.CacheMaxAge, err = fs.GetDuration(f.Name)
		case FlagAssetStore:
			cfg.AssetStore, err = fs.GetString(f.Name)
		case FlagS3Bucket:
			cfg.S3Bucket, err = fs.GetString(f.Name)
		case FlagS3Region:
			cfg.S3Region, err = fs.GetString(f.Name)
		case FlagS3Endpoint:
			cfg.S3BaseEndpoint, err = fs.GetString(f.Name)
		case FlagS3AccessKey:
			cfg.S3AccessKey, err = fs.GetString(f.Name)
		case FlagS3SecretKey:
			cfg.S3SecretKey, err = fs.GetString(f.Name)
		case FlagLogFile:
			cfg.LogFile, err = fs.GetString(f.Name)
		case FlagLogLevel:
			cfg.LogLevel, err = fs.GetString(f.Name)
		}
	})
	return err
}
