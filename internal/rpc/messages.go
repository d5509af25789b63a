package rpc

import "time"

// ServiceName is the fully qualified gRPC service of the authority.
const ServiceName = "refkeeper.v1.Authority"

// Full method names.
const (
	MethodPing       = "/" + ServiceName + "/Ping"
	MethodGetChanges = "/" + ServiceName + "/GetChanges"
	MethodPushItem   = "/" + ServiceName + "/PushItem"
)

// StatusOK is the Ping status of a healthy authority.
const StatusOK = "OK"

type Author struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family"`
}

// Item is the canonical item record exchanged with the authority.
type Item struct {
	ID        string            `json:"id"`
	LibraryID string            `json:"libraryId"`
	Type      string            `json:"type"`
	Title     *string           `json:"title,omitempty"`
	Year      *int              `json:"year,omitempty"`
	Venue     *string           `json:"venue,omitempty"`
	Authors   []Author          `json:"authors"`
	Tags      []string          `json:"tags"`
	Extra     map[string]string `json:"extra,omitempty"`
	Version   int64             `json:"version"`
	Deleted   bool              `json:"deleted"`
	CreatedBy string            `json:"createdBy"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// GetChangesRequest asks for every item the authority stored after Since.
type GetChangesRequest struct {
	Since time.Time `json:"since"`
}

type GetChangesResponse struct {
	Items      []Item    `json:"items"`
	ServerTime time.Time `json:"serverTime"`
}

type PushItemRequest struct {
	Item Item `json:"item"`
}

// PushItemResponse reports whether the pushed version was stored. A rejected
// push carries the authority's current copy.
type PushItemResponse struct {
	Accepted bool  `json:"accepted"`
	Current  *Item `json:"current,omitempty"`
}
