// Package common contains shared constants and sentinel errors used across
// RefKeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Mime types of the two artifact kinds stored remotely.
const (
	MimePDF  = "application/pdf"
	MimeJSON = "application/json"
)
