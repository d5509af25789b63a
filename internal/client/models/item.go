// Package models defines the client-side records of a RefKeeper library:
// bibliographic items, their PDF attachments, annotation sets, upload queue
// entries, and the sync bookkeeping built around them.
package models

import "time"

// ItemType is the bibliographic kind of an item.
type ItemType string

const (
	ItemTypeJournalArticle  ItemType = "journalArticle"
	ItemTypeBook            ItemType = "book"
	ItemTypeBookSection     ItemType = "bookSection"
	ItemTypeConferencePaper ItemType = "conferencePaper"
	ItemTypeThesis          ItemType = "thesis"
	ItemTypeReport          ItemType = "report"
	ItemTypePreprint        ItemType = "preprint"
	ItemTypeWebpage         ItemType = "webpage"
	ItemTypeOther           ItemType = "other"
)

// Author is one creator of an item.
type Author struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family" validate:"required"`
}

// Item is a bibliographic reference.
//
// Version starts at 1 and grows by exactly one per committed local mutation;
// pulls replace it with the authority's version. LocalModifiedAt is stamped
// only by local mutations and stays zero for records that arrived by pull,
// which keeps pulled records out of the next push.
type Item struct {
	ID              string            `json:"id" validate:"required"`
	LibraryID       string            `json:"libraryId" validate:"required"`
	Type            ItemType          `json:"type" validate:"required"`
	Title           *string           `json:"title,omitempty"`
	Year            *int              `json:"year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	Venue           *string           `json:"venue,omitempty"`
	Authors         []Author          `json:"authors" validate:"dive"`
	Tags            []string          `json:"tags"`
	Extra           map[string]string `json:"extra,omitempty"`
	Version         int64             `json:"version" validate:"min=1"`
	Deleted         bool              `json:"deleted"`
	CreatedBy       string            `json:"createdBy"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	LocalModifiedAt time.Time         `json:"-"`
}

// ItemDraft carries the user-supplied fields of a new item.
type ItemDraft struct {
	LibraryID string            `json:"libraryId" validate:"required"`
	Type      ItemType          `json:"type" validate:"required,oneof=journalArticle book bookSection conferencePaper thesis report preprint webpage other"`
	Title     *string           `json:"title,omitempty"`
	Year      *int              `json:"year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	Venue     *string           `json:"venue,omitempty"`
	Authors   []Author          `json:"authors" validate:"dive"`
	Tags      []string          `json:"tags"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// ItemPatch is a partial update; nil fields keep their current value.
type ItemPatch struct {
	Type    *ItemType          `json:"type,omitempty" validate:"omitempty,oneof=journalArticle book bookSection conferencePaper thesis report preprint webpage other"`
	Title   *string            `json:"title,omitempty"`
	Year    *int               `json:"year,omitempty" validate:"omitempty,gte=0,lte=9999"`
	Venue   *string            `json:"venue,omitempty"`
	Authors *[]Author          `json:"authors,omitempty"`
	Tags    *[]string          `json:"tags,omitempty"`
	Extra   *map[string]string `json:"extra,omitempty"`
}

// Apply copies every set field of p onto it.
func (p ItemPatch) Apply(it *Item) {
	if p.Type != nil {
		it.Type = *p.Type
	}
	if p.Title != nil {
		it.Title = p.Title
	}
	if p.Year != nil {
		it.Year = p.Year
	}
	if p.Venue != nil {
		it.Venue = p.Venue
	}
	if p.Authors != nil {
		it.Authors = *p.Authors
	}
	if p.Tags != nil {
		it.Tags = *p.Tags
	}
	if p.Extra != nil {
		it.Extra = *p.Extra
	}
}

// DisplayTitle returns the title or a placeholder.
func (it *Item) DisplayTitle() string {
	if it.Title == nil || *it.Title == "" {
		return "(untitled)"
	}
	return *it.Title
}
