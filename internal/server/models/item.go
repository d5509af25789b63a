// Package models holds the authority's persisted records.
package models

import "time"

type Author struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family" validate:"required"`
}

// Item is the canonical copy of one user's item. StoredAt is stamped by the
// database on every accepted write and drives change feeds.
type Item struct {
	UserID    string `validate:"required"`
	ID        string `validate:"required"`
	LibraryID string `validate:"required"`
	Type      string `validate:"required"`
	Title     *string
	Year      *int
	Venue     *string
	Authors   []Author `validate:"dive"`
	Tags      []string
	Extra     map[string]string
	Version   int64 `validate:"min=1"`
	Deleted   bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
	StoredAt  time.Time
}
