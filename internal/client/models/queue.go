package models

import "time"

// QueueKind names what an upload queue entry pushes.
type QueueKind string

const (
	QueueKindPDF        QueueKind = "pdf"
	QueueKindAnnotation QueueKind = "annotation"
	QueueKindMetadata   QueueKind = "metadata"
)

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusUploading QueueStatus = "uploading"
	QueueStatusFailed    QueueStatus = "failed"
	QueueStatusCompleted QueueStatus = "completed"
)

// DefaultMaxRetries bounds handler failures before an entry is parked as failed.
const DefaultMaxRetries = 5

// QueueEntry is one deferred remote operation.
//
// TargetID is an attachment id for pdf entries, an annotation set id for
// annotation entries and an item id for metadata entries. NextRetryAt is zero
// for entries that may run immediately.
type QueueEntry struct {
	ID          string
	Kind        QueueKind
	TargetID    string
	LocalPath   string
	Status      QueueStatus
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	NextRetryAt time.Time
}

// QueueCounts tallies entries per status.
type QueueCounts map[QueueStatus]int
