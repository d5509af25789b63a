package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/refkeeper/internal/client/authority"
	"github.com/dmitrijs2005/refkeeper/internal/client/cache"
	"github.com/dmitrijs2005/refkeeper/internal/client/cli"
	"github.com/dmitrijs2005/refkeeper/internal/client/config"
	"github.com/dmitrijs2005/refkeeper/internal/client/filestore"
	"github.com/dmitrijs2005/refkeeper/internal/client/identity"
	"github.com/dmitrijs2005/refkeeper/internal/client/pdfinfo"
	"github.com/dmitrijs2005/refkeeper/internal/client/queue"
	"github.com/dmitrijs2005/refkeeper/internal/client/retry"
	"github.com/dmitrijs2005/refkeeper/internal/client/services"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/refkeeper/internal/client/watcher"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func printBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\nBuild date: %s\nBuild commit: %s\n", buildVersion, buildDate, buildCommit)
}

func main() {
	printBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "refkeeper: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()

	store, err := storage.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	contentCache, err := cache.New(cfg.CachePath())
	if err != nil {
		return err
	}

	var (
		id     identity.Provider = identity.Static{ID: cfg.UserID}
		tokens cli.TokenSetter
	)
	if cfg.AccessToken != "" {
		tp, err := identity.NewTokenProvider(cfg.AccessToken)
		if err != nil {
			return fmt.Errorf("failed to read access token: %w", err)
		}
		id, tokens = tp, tp
	}

	files, err := filestore.NewS3Store(ctx, filestore.S3Config{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		Bucket:     cfg.S3Bucket,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		LinkExpiry: cfg.LinkExpiry,
	})
	if err != nil {
		return err
	}

	auth, err := authority.NewGRPCClient(cfg.AuthorityAddr, id)
	if err != nil {
		return err
	}
	defer auth.Close()

	policy := retry.Policy{MaxAttempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}

	q := queue.NewProcessor(store.Queue, logger, queue.Options{
		MaxRetries:    cfg.QueueMaxRetries,
		RatePerSecond: cfg.UploadRatePerSecond,
		Burst:         1,
	})

	library := services.NewLibraryService(store, contentCache, files, q, id, pdfinfo.NewReader(), logger,
		services.Options{RemoteRoot: cfg.RemoteRoot, Retry: policy})
	library.RegisterHandlers(q)

	engine := syncer.NewEngine(store, auth, q, library, logger, syncer.Options{Retry: policy})

	if cfg.InboxDir != "" {
		inbox, err := watcher.NewInbox(library, logger, watcher.Options{Dir: cfg.InboxDir, LibraryID: cfg.DefaultLibrary})
		if err != nil {
			return err
		}
		go func() {
			if err := inbox.Run(ctx); err != nil {
				logger.Error(ctx, "inbox watcher stopped", "error", err)
			}
		}()
	}

	app := cli.NewApp(cli.Deps{
		Library:             library,
		Sync:                engine,
		Queue:               q,
		Online:              auth,
		Tokens:              tokens,
		Logger:              logger,
		LibraryID:           cfg.DefaultLibrary,
		OnlineCheckInterval: cfg.OnlineCheckInterval,
		SyncInterval:        cfg.SyncInterval,
	})
	app.Run(ctx)
	return nil
}
