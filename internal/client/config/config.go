package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the refkeeper client.
type Config struct {
	DataDir      string
	DatabaseFile string
	CacheDir     string
	LogFile      string
	LogLevel     string

	AuthorityAddr       string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	RemoteRoot  string
	LinkExpiry  time.Duration

	UserID      string
	AccessToken string

	QueueMaxRetries     int
	UploadRatePerSecond float64
	RetryAttempts       int
	RetryBaseDelay      time.Duration

	InboxDir       string
	DefaultLibrary string
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".refkeeper")
	c.LogLevel = "info"

	c.AuthorityAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 5 * time.Minute

	c.S3Endpoint = "http://127.0.0.1:9000"
	c.S3Region = "us-east-1"
	c.S3Bucket = "refkeeper"
	c.RemoteRoot = "refkeeper/"
	c.LinkExpiry = 24 * time.Hour

	c.QueueMaxRetries = 5
	c.UploadRatePerSecond = 2
	c.RetryAttempts = 3
	c.RetryBaseDelay = 500 * time.Millisecond

	c.DefaultLibrary = "default"
}

// DatabasePath is DatabaseFile, or refkeeper.db inside DataDir.
func (c *Config) DatabasePath() string {
	if c.DatabaseFile != "" {
		return c.DatabaseFile
	}
	return filepath.Join(c.DataDir, "refkeeper.db")
}

// CachePath is CacheDir, or cache/ inside DataDir.
func (c *Config) CachePath() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(c.DataDir, "cache")
}

// LoadConfig applies defaults, then the optional JSON file named by -c or
// -config, then flags. Later sources win. args excludes the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
