package models

import "time"

// SyncResult aggregates one sync pass.
type SyncResult struct {
	Pushed    int
	Pulled    int
	Conflicts int
	Errors    int

	// Queue outcomes of the draining phase.
	Uploaded int
	Retried  int
	Failed   int

	AnnotationsPulled int
}

// ConflictSource tells which phase detected a conflict.
type ConflictSource string

const (
	ConflictSourcePull ConflictSource = "pull"
	ConflictSourcePush ConflictSource = "push"
)

// Conflict is an item whose local and remote copies both changed.
// Remote is nil when the authority rejected a push without sending its copy.
type Conflict struct {
	ItemID        string
	LocalVersion  int64
	RemoteVersion int64
	Remote        *Item
	Source        ConflictSource
	DetectedAt    time.Time
}

// Resolution picks the winning side of a conflict.
type Resolution string

const (
	ResolutionKeepLocal  Resolution = "local"
	ResolutionKeepRemote Resolution = "remote"
)
