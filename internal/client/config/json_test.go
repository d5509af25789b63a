package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"authority_addr":         "www.example:9000",
		"sync_interval":          "10s",
		"retry_base_delay":       1000000,
		"upload_rate_per_second": 0.5,
	})

	t.Run("loads from -config", func(t *testing.T) {
		cfg := &Config{S3Bucket: "kept"}
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.AuthorityAddr)
		assert.Equal(t, 10*time.Second, cfg.SyncInterval)
		assert.Equal(t, time.Millisecond, cfg.RetryBaseDelay)
		assert.Equal(t, 0.5, cfg.UploadRatePerSecond)
		assert.Equal(t, "kept", cfg.S3Bucket)
	})

	t.Run("short flag", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, parseJson(cfg, []string{"-c", path}))
		assert.Equal(t, "www.example:9000", cfg.AuthorityAddr)
	})

	t.Run("no flag → no changes", func(t *testing.T) {
		cfg := &Config{AuthorityAddr: "defaults:1234", SyncInterval: 42 * time.Second}
		require.NoError(t, parseJson(cfg, nil))

		assert.Equal(t, "defaults:1234", cfg.AuthorityAddr)
		assert.Equal(t, 42*time.Second, cfg.SyncInterval)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))
		assert.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, parseJson(&Config{}, []string{"-config", filepath.Join(dir, "nope.json")}))
	})
}
