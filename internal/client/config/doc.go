// Package config loads runtime configuration for the offline sync engine.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or --config.
//  3. Command-line flags set explicitly, which override earlier values.
//
// Flags are registered on a pflag.FlagSet (see RegisterFlags) so the CLI
// can own parsing; LoadConfig only reads flags that were changed.
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "database_dsn": "offlinesync.db",
//	  "online_check_interval": "3s",
//	  "stale_after": "3s",
//	  "asset_store": "s3",
//	  "s3_bucket": "assets",
//	  "s3_base_endpoint": "http://127.0.0.1:9000"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
