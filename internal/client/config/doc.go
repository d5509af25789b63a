// Package config loads runtime configuration for the refkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the remote authority
//	-d string   data directory
//	-s string   S3 endpoint
//	-b string   S3 bucket
//	-u string   user id
//	-t string   access token
//	-i int      sync interval (seconds)
//	-l string   log file; empty logs to stderr
//	-w string   inbox directory to watch for PDFs
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds. Keys left out keep their default:
//
//	{
//	  "data_dir": "/home/me/.refkeeper",
//	  "authority_addr": "127.0.0.1:50051",
//	  "sync_interval": "5m",
//	  "s3_endpoint": "http://127.0.0.1:9000",
//	  "s3_bucket": "refkeeper",
//	  "s3_access_key": "minio",
//	  "s3_secret_key": "minio123",
//	  "user_id": "alice",
//	  "retry_base_delay": "500ms"
//	}
package config
