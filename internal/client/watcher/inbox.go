// Package watcher adds PDFs dropped into an inbox directory to the library.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/services"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const defaultSettleDelay = 500 * time.Millisecond

// Adder is the part of the library service the inbox needs.
type Adder interface {
	AddPDF(ctx context.Context, req services.AddPDFRequest) (*services.AddPDFResult, error)
}

type Options struct {
	Dir       string
	LibraryID string
	// SettleDelay is how long a file must stay unchanged before it is added.
	SettleDelay time.Duration
}

type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// Inbox watches one directory, non-recursively.
type Inbox struct {
	adder  Adder
	logger logging.Logger
	opts   Options

	mu      sync.Mutex
	pending map[string]*pendingFile
	ready   chan string
	done    chan struct{}
}

func NewInbox(adder Adder, logger logging.Logger, opts Options) (*Inbox, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("inbox dir is empty: %w", common.ErrValidation)
	}
	if opts.LibraryID == "" {
		return nil, fmt.Errorf("inbox library is empty: %w", common.ErrValidation)
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	return &Inbox{
		adder:   adder,
		logger:  logger.With("module", "watcher"),
		opts:    opts,
		pending: make(map[string]*pendingFile),
		ready:   make(chan string, 16),
		done:    make(chan struct{}),
	}, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Run watches until ctx ends. Files already present are picked up first.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.opts.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create inbox dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(in.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", in.opts.Dir, err)
	}
	defer in.stop()

	in.logger.Info(ctx, "watching inbox", "dir", in.opts.Dir, "library", in.opts.LibraryID)
	in.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			in.handleEvent(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn(ctx, "inbox watch error", "error", err)

		case path := <-in.ready:
			in.add(ctx, path)
		}
	}
}

func (in *Inbox) scan(ctx context.Context) {
	entries, err := os.ReadDir(in.opts.Dir)
	if err != nil {
		in.logger.Warn(ctx, "failed to list inbox", "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isPDF(e.Name()) {
			in.settle(filepath.Join(in.opts.Dir, e.Name()))
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	if !isPDF(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		in.cancel(ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		in.settle(ev.Name)
	}
}

// settle (re)starts the quiet period of path.
func (in *Inbox) settle(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		in.cancel(path)
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if p, ok := in.pending[path]; ok {
		p.timer.Stop()
	}
	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	p.timer = time.AfterFunc(in.opts.SettleDelay, func() { in.checkSettled(path) })
	in.pending[path] = p
}

func (in *Inbox) checkSettled(path string) {
	in.mu.Lock()
	p, ok := in.pending[path]
	if !ok {
		in.mu.Unlock()
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		delete(in.pending, path)
		in.mu.Unlock()
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(in.opts.SettleDelay, func() { in.checkSettled(path) })
		in.mu.Unlock()
		return
	}
	delete(in.pending, path)
	in.mu.Unlock()

	select {
	case in.ready <- path:
	case <-in.done:
	}
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if p, ok := in.pending[path]; ok {
		p.timer.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) stop() {
	close(in.done)
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, p := range in.pending {
		p.timer.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) add(ctx context.Context, path string) {
	res, err := in.adder.AddPDF(ctx, services.AddPDFRequest{
		LibraryID: in.opts.LibraryID,
		Path:      path,
		Filename:  filepath.Base(path),
	})

	var dup *common.DuplicateError
	switch {
	case errors.As(err, &dup):
		in.logger.Info(ctx, "inbox pdf already in library", "path", path, "attachment", dup.AttachmentID)
	case err != nil:
		in.logger.Error(ctx, "failed to add inbox pdf", "path", path, "error", err)
	default:
		in.logger.Info(ctx, "inbox pdf added", "path", path, "item", res.Item.ID, "queued", res.Queued)
	}
}
