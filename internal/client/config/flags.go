package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-s", "-b", "-u", "-t", "-i", "-l", "-w"}

// parseFlags overlays cfg with the client's own flags, ignoring the rest.
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("refkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.AuthorityAddr, "a", cfg.AuthorityAddr, "address and port of the remote authority")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.S3Endpoint, "s", cfg.S3Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.UserID, "u", cfg.UserID, "user id")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "log file")
	fs.StringVar(&cfg.InboxDir, "w", cfg.InboxDir, "inbox directory to watch")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	return nil
}
