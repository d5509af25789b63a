package models

import "time"

// AnnotationSet holds every annotation on one attachment.
//
// LocalVersion counts local saves and merges; RemoteVersion is the version
// last written to or read from the remote sidecar. The set is dirty exactly
// when LocalVersion is ahead.
type AnnotationSet struct {
	ID             string
	AttachmentID   string
	Annotations    Annotations
	RemoteFileID   string
	RemoteRevision string
	LocalVersion   int64
	RemoteVersion  int64
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *AnnotationSet) Dirty() bool {
	return s.LocalVersion > s.RemoteVersion
}
