package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/refkeeper/internal/flagx"
	"github.com/dmitrijs2005/refkeeper/internal/timex"
)

// JsonConfig is the file form of Config. Durations accept "1m" strings or
// integer nanoseconds.
type JsonConfig struct {
	GRPCAddr            string         `json:"grpc_addr"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	AccessTokenValidity timex.Duration `json:"access_token_validity"`
	LogLevel            string         `json:"log_level"`
}

// parseJson overlays cfg with the file named by -c or -config, if any.
// Keys missing from the file keep their current value.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	jc := JsonConfig{
		GRPCAddr:            cfg.GRPCAddr,
		DatabaseDSN:         cfg.DatabaseDSN,
		SecretKey:           cfg.SecretKey,
		AccessTokenValidity: timex.Duration{Duration: cfg.AccessTokenValidity},
		LogLevel:            cfg.LogLevel,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.GRPCAddr = jc.GRPCAddr
	cfg.DatabaseDSN = jc.DatabaseDSN
	cfg.SecretKey = jc.SecretKey
	cfg.AccessTokenValidity = jc.AccessTokenValidity.Duration
	cfg.LogLevel = jc.LogLevel
	return nil
}
