package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/cache"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/client/services"
	"github.com/dmitrijs2005/refkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Library is the part of services.LibraryService the REPL drives.
type Library interface {
	CreateItem(ctx context.Context, draft models.ItemDraft) (*models.Item, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, id string) (*models.Item, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, libraryID string) ([]models.Item, error)
	ListAttachments(ctx context.Context, itemID string) ([]models.Attachment, error)
	AddPDF(ctx context.Context, req services.AddPDFRequest) (*services.AddPDFResult, error)
	OpenPDF(ctx context.Context, attachmentID string) (string, error)
	GetAnnotations(ctx context.Context, attachmentID string) (*models.AnnotationSet, error)
	SaveAnnotations(ctx context.Context, attachmentID string, anns []models.Annotation) (*models.AnnotationSet, error)
	CacheStats() (cache.Stats, error)
}

type Syncer interface {
	Run(ctx context.Context) (models.SyncResult, error)
	RunEvery(ctx context.Context, interval time.Duration)
	ListConflicts(ctx context.Context) ([]models.Conflict, error)
	ResolveConflict(ctx context.Context, itemID string, resolution models.Resolution) (*models.Item, error)
	State() syncer.State
}

type Queue interface {
	ListPending(ctx context.Context) ([]models.QueueEntry, error)
	ListFailed(ctx context.Context) ([]models.QueueEntry, error)
	Retry(ctx context.Context, id string) (*models.QueueEntry, error)
	Counts(ctx context.Context) (models.QueueCounts, error)
}

type Pinger interface {
	IsOnline(ctx context.Context) bool
}

// TokenSetter accepts a new access token at runtime.
type TokenSetter interface {
	SetToken(token string) error
}

// Deps are the collaborators of an App. Tokens may be nil.
type Deps struct {
	Library Library
	Sync    Syncer
	Queue   Queue
	Online  Pinger
	Tokens  TokenSetter
	Logger  logging.Logger

	LibraryID           string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration

	In  io.Reader
	Out io.Writer
}

type App struct {
	library Library
	sync    Syncer
	queue   Queue
	online  Pinger
	tokens  TokenSetter
	logger  logging.Logger

	libraryID           string
	onlineCheckInterval time.Duration
	syncInterval        time.Duration

	reader *bufio.Reader
	out    io.Writer

	modeMu sync.RWMutex
	mode   Mode
}

func NewApp(d Deps) *App {
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return &App{
		library:             d.Library,
		sync:                d.Sync,
		queue:               d.Queue,
		online:              d.Online,
		tokens:              d.Tokens,
		logger:              d.Logger.With("module", "cli"),
		libraryID:           d.LibraryID,
		onlineCheckInterval: d.OnlineCheckInterval,
		syncInterval:        d.SyncInterval,
		reader:              bufio.NewReader(d.In),
		out:                 d.Out,
		mode:                ModeOffline,
	}
}

func (a *App) Mode() Mode {
	a.modeMu.RLock()
	defer a.modeMu.RUnlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.modeMu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.modeMu.Unlock()

	if changed {
		a.logger.Info(ctx, "switched mode", "mode", mode)
	}
}

func (a *App) checkOnline(ctx context.Context) {
	if a.online.IsOnline(ctx) {
		a.setMode(ctx, ModeOnline)
	} else {
		a.setMode(ctx, ModeOffline)
	}
}

// StartOnlineStatusWatcher probes the authority every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	s := a.libraryID + " " + string(a.Mode())
	if st := a.sync.State(); st != syncer.StateIdle {
		s += " " + string(st)
	}
	return "(" + s + ")"
}

// Run starts the background loops and the REPL; it returns when the user
// exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.printf("Welcome to refkeeper (type 'help' for commands)\n")
	a.checkOnline(ctx)

	if a.onlineCheckInterval > 0 {
		go a.StartOnlineStatusWatcher(ctx, a.onlineCheckInterval)
	}
	if a.syncInterval > 0 {
		go a.sync.RunEvery(ctx, a.syncInterval)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}
