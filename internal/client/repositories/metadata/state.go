package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	keyLastSync     = "lastSyncTimestamp"
	keyPullCursor   = "pullCursor"
	folderKeyPrefix = "folder:"
)

// SyncState gives typed access to the well-known metadata keys.
//
// Two cursors are kept. LastSyncTimestamp is on the local clock and selects
// local edits to push. PullCursor is on the authority's clock and is the
// since of the next change feed read.
type SyncState struct {
	repo Repository
}

func NewSyncState(repo Repository) *SyncState {
	return &SyncState{repo: repo}
}

func (s *SyncState) getTime(ctx context.Context, key string) (time.Time, error) {
	v, err := s.repo.Get(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	if v == nil {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return t, nil
}

func (s *SyncState) setTime(ctx context.Context, key string, t time.Time) error {
	return s.repo.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// LastSyncTimestamp returns the committed push cursor, or the zero time
// before the first successful pass.
func (s *SyncState) LastSyncTimestamp(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, keyLastSync)
}

func (s *SyncState) SetLastSyncTimestamp(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyLastSync, t)
}

// PullCursor returns the authority time of the last complete pull, or the
// zero time when nothing was pulled yet.
func (s *SyncState) PullCursor(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, keyPullCursor)
}

func (s *SyncState) SetPullCursor(ctx context.Context, t time.Time) error {
	return s.setTime(ctx, keyPullCursor, t)
}

// ResetCursor forgets both cursors so the next pass pulls everything.
func (s *SyncState) ResetCursor(ctx context.Context) error {
	if err := s.repo.Delete(ctx, keyLastSync); err != nil {
		return err
	}
	return s.repo.Delete(ctx, keyPullCursor)
}

func folderKey(libraryID, name string) string {
	return folderKeyPrefix + libraryID + ":" + name
}

// FolderID returns the cached remote folder id, or "" when unknown.
func (s *SyncState) FolderID(ctx context.Context, libraryID, name string) (string, error) {
	v, err := s.repo.Get(ctx, folderKey(libraryID, name))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *SyncState) SetFolderID(ctx context.Context, libraryID, name, id string) error {
	return s.repo.Set(ctx, folderKey(libraryID, name), []byte(id))
}

// Folders lists the cached folder ids of a library keyed by folder name.
func (s *SyncState) Folders(ctx context.Context, libraryID string) (map[string]string, error) {
	prefix := folderKey(libraryID, "")
	kv, err := s.repo.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(kv))
	for k, v := range kv {
		out[strings.TrimPrefix(k, prefix)] = string(v)
	}
	return out, nil
}
