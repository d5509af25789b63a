package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/cache"
	"github.com/dmitrijs2005/refkeeper/internal/client/filestore"
	"github.com/dmitrijs2005/refkeeper/internal/client/identity"
	"github.com/dmitrijs2005/refkeeper/internal/client/queue"
	"github.com/dmitrijs2005/refkeeper/internal/client/retry"
	"github.com/dmitrijs2005/refkeeper/internal/client/storage"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/dbx"
	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/stretchr/testify/require"
)

type remoteFile struct {
	name     string
	parent   string
	mimeType string
	content  []byte
	revision string
}

// fakeFiles is an in-memory file store.
type fakeFiles struct {
	mu      sync.Mutex
	offline bool
	seq     int
	files   map[string]*remoteFile
	folders map[string]bool
	uploads int

	// beforeUpdate runs once inside the next UpdateFile, before the
	// revision check, to simulate a concurrent writer.
	beforeUpdate func(f *fakeFiles)
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string]*remoteFile{}, folders: map[string]bool{}}
}

func (f *fakeFiles) down() error {
	if f.offline {
		return fmt.Errorf("%w: offline", common.ErrUnavailable)
	}
	return nil
}

func (f *fakeFiles) nextRev() string {
	f.seq++
	return fmt.Sprintf("r%d", f.seq)
}

func (f *fakeFiles) describe(id string) *filestore.File {
	rf := f.files[id]
	return &filestore.File{
		ID: id, Name: rf.name, MimeType: rf.mimeType, Size: int64(len(rf.content)),
		Revision: rf.revision, WebLink: "https://files.local/" + id, Parents: []string{rf.parent},
	}
}

// put stores content directly, as another device would.
func (f *fakeFiles) put(parent, name string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := parent + name
	f.files[id] = &remoteFile{name: name, parent: parent, mimeType: common.MimeJSON, content: content, revision: f.nextRev()}
	return id
}

func (f *fakeFiles) content(id string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rf, ok := f.files[id]; ok {
		return rf.content
	}
	return nil
}

func (f *fakeFiles) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return "", err
	}
	id := parentID + name + "/"
	f.folders[id] = true
	return id, nil
}

func (f *fakeFiles) UploadResumable(ctx context.Context, req filestore.UploadRequest) (*filestore.File, error) {
	data, err := os.ReadFile(req.LocalPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	id := req.Parents[0] + req.Name
	f.files[id] = &remoteFile{name: req.Name, parent: req.Parents[0], mimeType: req.MimeType, content: data, revision: f.nextRev()}
	f.uploads++
	return f.describe(id), nil
}

func (f *fakeFiles) DownloadFile(ctx context.Context, fileID, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return err
	}
	rf, ok := f.files[fileID]
	if !ok {
		return common.ErrNotFound
	}
	return os.WriteFile(destPath, rf.content, 0o600)
}

func (f *fakeFiles) DownloadJSON(ctx context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	rf, ok := f.files[fileID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rf.content, nil
}

func (f *fakeFiles) GetFileMetadata(ctx context.Context, fileID string) (*filestore.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	if _, ok := f.files[fileID]; !ok {
		return nil, fmt.Errorf("%s: %w", fileID, common.ErrNotFound)
	}
	return f.describe(fileID), nil
}

func (f *fakeFiles) FindFile(ctx context.Context, parentID, name string) (*filestore.File, error) {
	return f.GetFileMetadata(ctx, parentID+name)
}

func (f *fakeFiles) CreateFile(ctx context.Context, req filestore.CreateRequest) (*filestore.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	id := req.Parents[0] + req.Name
	if _, ok := f.files[id]; ok {
		return nil, common.ErrVersionConflict
	}
	f.files[id] = &remoteFile{name: req.Name, parent: req.Parents[0], mimeType: req.MimeType, content: req.Content, revision: f.nextRev()}
	return f.describe(id), nil
}

func (f *fakeFiles) UpdateFile(ctx context.Context, fileID string, content []byte, mimeType, expectRevision string) (*filestore.File, error) {
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.down(); err != nil {
		return nil, err
	}
	rf, ok := f.files[fileID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if expectRevision != "" && expectRevision != rf.revision {
		return nil, common.ErrVersionConflict
	}
	rf.content, rf.mimeType, rf.revision = content, mimeType, f.nextRev()
	return f.describe(fileID), nil
}

func (f *fakeFiles) IsOnline(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline
}

type fakePages struct {
	n   int
	err error
}

func (p fakePages) PageCount(string) (int, error) { return p.n, p.err }

type fixture struct {
	svc   *LibraryService
	store *storage.Store
	files *fakeFiles
	queue *queue.Processor
	cache *cache.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, dbx.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := cache.New(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	files := newFakeFiles()
	q := queue.NewProcessor(store.Queue, logging.NewNop(), queue.Options{})
	svc := NewLibraryService(store, c, files, q, identity.Static{ID: "alice"}, fakePages{n: 10}, logging.NewNop(),
		Options{RemoteRoot: "refkeeper/", Retry: retry.Policy{MaxAttempts: 0, BaseDelay: time.Millisecond}})
	svc.RegisterHandlers(q)

	return &fixture{svc: svc, store: store, files: files, queue: q, cache: c}
}

// writePDF creates a file whose bytes are unique to body.
func writePDF(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\n"+body+"\n%%EOF\n"), 0o600))
	return p
}
