package models

import "time"

// Attachment is a PDF file bound to an item. Its checksum is the SHA-256 of
// the file bytes and never changes once recorded.
type Attachment struct {
	ID        string
	ItemID    string
	LibraryID string
	Filename  string
	MimeType  string
	Size      int64
	Checksum  string
	PageCount int
	Remote    *RemoteFile
	CreatedAt time.Time
}

// RemoteFile describes the uploaded copy of a local artifact.
type RemoteFile struct {
	FileID   string
	ParentID string
	WebLink  string
	Revision string
}

// Uploaded reports whether the attachment has a remote copy.
func (a *Attachment) Uploaded() bool {
	return a.Remote != nil && a.Remote.FileID != ""
}
