package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.AuthorityAddr)
	assert.Equal(t, 5*time.Minute, c.SyncInterval)
	assert.Equal(t, 3, c.RetryAttempts)
	assert.Equal(t, 500*time.Millisecond, c.RetryBaseDelay)
	assert.Equal(t, 5, c.QueueMaxRetries)
	assert.Equal(t, "default", c.DefaultLibrary)
	assert.Equal(t, filepath.Join(c.DataDir, "refkeeper.db"), c.DatabasePath())
	assert.Equal(t, filepath.Join(c.DataDir, "cache"), c.CachePath())
}

func TestPaths_Overrides(t *testing.T) {
	c := Config{DataDir: "/data", DatabaseFile: "/db/x.db", CacheDir: "/c"}
	assert.Equal(t, "/db/x.db", c.DatabasePath())
	assert.Equal(t, "/c", c.CachePath())
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"authority_addr": "json:1",
		"user_id":        "from-json",
		"sync_interval":  "1m",
	})

	cfg, err := LoadConfig([]string{"-config", path, "-u", "from-flag", "-i", "30", "-x", "ignored"})
	require.NoError(t, err)

	assert.Equal(t, "json:1", cfg.AuthorityAddr)
	assert.Equal(t, "from-flag", cfg.UserID)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	// untouched by either source
	assert.Equal(t, "refkeeper", cfg.S3Bucket)
}

func TestLoadConfig_NoSources(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, cfg)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "host:9", "-d", "/d", "-s", "http://s3", "-b", "bk", "-u", "bob", "-t", "tok", "-i", "10", "-l", "/log", "-w", "/inbox"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, Config{
					AuthorityAddr: "host:9", DataDir: "/d", S3Endpoint: "http://s3", S3Bucket: "bk",
					UserID: "bob", AccessToken: "tok", SyncInterval: 10 * time.Second, LogFile: "/log", InboxDir: "/inbox",
				}, *c)
			},
		},
		{name: "bad interval", args: []string{"-i", "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			err := parseFlags(c, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
