package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/syncer"
	"github.com/dustin/go-humanize"
)

// Sync runs one pass now.
func (a *App) Sync(ctx context.Context, args []string) error {
	res, err := a.sync.Run(ctx)
	if errors.Is(err, syncer.ErrInProgress) {
		a.printf("A sync pass is already running\n")
		return nil
	}
	a.printf("%s\n", formatResult(res))
	return err
}

func (a *App) Conflicts(ctx context.Context, args []string) error {
	list, err := a.sync.ListConflicts(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.printf("No conflicts\n")
		return nil
	}
	for _, c := range list {
		remote := "(no remote copy)"
		if c.Remote != nil {
			remote = c.Remote.DisplayTitle()
		}
		a.printf("%s  local v%d  remote v%d  %s  remote: %s\n", c.ItemID, c.LocalVersion, c.RemoteVersion, c.Source, remote)
	}
	return nil
}

func (a *App) Resolve(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	var res models.Resolution
	switch args[1] {
	case "local":
		res = models.ResolutionKeepLocal
	case "remote":
		res = models.ResolutionKeepRemote
	default:
		return errUsage
	}

	it, err := a.sync.ResolveConflict(ctx, args[0], res)
	if err != nil {
		return err
	}
	a.printf("Resolved %s, now version %d\n", it.ID, it.Version)
	return nil
}

// Queue prints counts per status and the entries that gave up.
func (a *App) Queue(ctx context.Context, args []string) error {
	counts, err := a.queue.Counts(ctx)
	if err != nil {
		return err
	}
	a.printf("pending %d, uploading %d, failed %d, completed %d\n",
		counts[models.QueueStatusPending], counts[models.QueueStatusUploading],
		counts[models.QueueStatusFailed], counts[models.QueueStatusCompleted])

	failed, err := a.queue.ListFailed(ctx)
	if err != nil {
		return err
	}
	for _, e := range failed {
		a.printf("  failed %s  %s %s  after %d tries: %s\n", e.ID, e.Kind, e.TargetID, e.RetryCount, e.LastError)
	}
	return nil
}

func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	e, err := a.queue.Retry(ctx, args[0])
	if err != nil {
		return err
	}
	a.printf("Entry %s is %s again\n", e.ID, e.Status)
	return nil
}

func (a *App) CacheInfo(ctx context.Context, args []string) error {
	st, err := a.library.CacheStats()
	if err != nil {
		return err
	}
	a.printf("%d files, %s\n", st.Files, humanize.IBytes(uint64(st.TotalBytes)))
	return nil
}

// Token replaces the access token used for the authority.
func (a *App) Token(ctx context.Context, args []string) error {
	if a.tokens == nil {
		return fmt.Errorf("token is fixed by configuration")
	}
	tok, err := GetSecret("Access token", a.out)
	if err != nil {
		return err
	}
	if err := a.tokens.SetToken(tok); err != nil {
		return err
	}
	a.printf("Token updated\n")
	a.checkOnline(ctx)
	return nil
}
