// Package filestore is the client of the remote blob store holding PDFs and
// annotation sidecars. Files and folders are addressed by opaque ids; each
// stored version of a file carries a revision tag.
package filestore

import (
	"context"
)

// File describes one stored file version.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	Revision string
	WebLink  string
	Parents  []string
}

// UploadRequest uploads the content of a local file.
type UploadRequest struct {
	Name      string
	MimeType  string
	Parents   []string
	LocalPath string
}

// CreateRequest creates a file from in-memory content.
type CreateRequest struct {
	Name     string
	MimeType string
	Parents  []string
	Content  []byte
}

// FileStore is the capability set consumed by the library services.
//
// Errors wrap common.ErrNotFound for missing files, common.ErrVersionConflict
// when a conditional write lost a race, common.ErrUnauthorized for rejected
// credentials and common.ErrUnavailable when the store cannot be reached.
type FileStore interface {
	// EnsureFolder returns the id of folder name under parentID, creating it
	// when missing. An empty parentID is the store root.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
	UploadResumable(ctx context.Context, req UploadRequest) (*File, error)
	DownloadFile(ctx context.Context, fileID, destPath string) error
	DownloadJSON(ctx context.Context, fileID string) ([]byte, error)
	GetFileMetadata(ctx context.Context, fileID string) (*File, error)
	// FindFile looks a file up by name inside a folder.
	FindFile(ctx context.Context, parentID, name string) (*File, error)
	// CreateFile fails with common.ErrVersionConflict if the file exists.
	CreateFile(ctx context.Context, req CreateRequest) (*File, error)
	// UpdateFile replaces the content of fileID. With a non-empty
	// expectRevision the write only happens while the stored revision still
	// matches it.
	UpdateFile(ctx context.Context, fileID string, content []byte, mimeType, expectRevision string) (*File, error)
	IsOnline(ctx context.Context) bool
}
