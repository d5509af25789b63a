package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/refkeeper/internal/flagx"
	"github.com/dmitrijs2005/refkeeper/internal/timex"
)

// JsonConfig is the file form of Config.
type JsonConfig struct {
	DataDir      string `json:"data_dir"`
	DatabaseFile string `json:"database_file"`
	CacheDir     string `json:"cache_dir"`
	LogFile      string `json:"log_file"`
	LogLevel     string `json:"log_level"`

	AuthorityAddr       string         `json:"authority_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`

	S3Endpoint  string         `json:"s3_endpoint"`
	S3Region    string         `json:"s3_region"`
	S3Bucket    string         `json:"s3_bucket"`
	S3AccessKey string         `json:"s3_access_key"`
	S3SecretKey string         `json:"s3_secret_key"`
	RemoteRoot  string         `json:"remote_root"`
	LinkExpiry  timex.Duration `json:"link_expiry"`

	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`

	QueueMaxRetries     int            `json:"queue_max_retries"`
	UploadRatePerSecond float64        `json:"upload_rate_per_second"`
	RetryAttempts       int            `json:"retry_attempts"`
	RetryBaseDelay      timex.Duration `json:"retry_base_delay"`

	InboxDir       string `json:"inbox_dir"`
	DefaultLibrary string `json:"default_library"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		DataDir: c.DataDir, DatabaseFile: c.DatabaseFile, CacheDir: c.CacheDir,
		LogFile: c.LogFile, LogLevel: c.LogLevel,
		AuthorityAddr:       c.AuthorityAddr,
		OnlineCheckInterval: timex.Duration{Duration: c.OnlineCheckInterval},
		SyncInterval:        timex.Duration{Duration: c.SyncInterval},
		S3Endpoint:          c.S3Endpoint, S3Region: c.S3Region, S3Bucket: c.S3Bucket,
		S3AccessKey: c.S3AccessKey, S3SecretKey: c.S3SecretKey,
		RemoteRoot: c.RemoteRoot, LinkExpiry: timex.Duration{Duration: c.LinkExpiry},
		UserID: c.UserID, AccessToken: c.AccessToken,
		QueueMaxRetries: c.QueueMaxRetries, UploadRatePerSecond: c.UploadRatePerSecond,
		RetryAttempts: c.RetryAttempts, RetryBaseDelay: timex.Duration{Duration: c.RetryBaseDelay},
		InboxDir: c.InboxDir, DefaultLibrary: c.DefaultLibrary,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.DataDir, c.DatabaseFile, c.CacheDir = jc.DataDir, jc.DatabaseFile, jc.CacheDir
	c.LogFile, c.LogLevel = jc.LogFile, jc.LogLevel
	c.AuthorityAddr = jc.AuthorityAddr
	c.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	c.SyncInterval = jc.SyncInterval.Duration
	c.S3Endpoint, c.S3Region, c.S3Bucket = jc.S3Endpoint, jc.S3Region, jc.S3Bucket
	c.S3AccessKey, c.S3SecretKey = jc.S3AccessKey, jc.S3SecretKey
	c.RemoteRoot, c.LinkExpiry = jc.RemoteRoot, jc.LinkExpiry.Duration
	c.UserID, c.AccessToken = jc.UserID, jc.AccessToken
	c.QueueMaxRetries, c.UploadRatePerSecond = jc.QueueMaxRetries, jc.UploadRatePerSecond
	c.RetryAttempts, c.RetryBaseDelay = jc.RetryAttempts, jc.RetryBaseDelay.Duration
	c.InboxDir, c.DefaultLibrary = jc.InboxDir, jc.DefaultLibrary
}

// parseJson overlays cfg with the file named by -c or -config, if any.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
