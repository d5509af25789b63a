// Package common defines shared constants and sentinel errors used across
// client and server layers of RefKeeper. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Content-level errors.
	ErrDuplicate         = errors.New("duplicate content")
	ErrIntegrity         = errors.New("integrity check failed")
	ErrSchemaVersion     = errors.New("unsupported schema version")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrValidation        = errors.New("validation error")

	// Sync-level errors.
	ErrVersionConflict = errors.New("version conflict")
	ErrUnavailable     = errors.New("remote unavailable")
	ErrUnauthorized    = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// DuplicateError reports that a PDF with the same checksum already exists
// in the library.
type DuplicateError struct {
	LibraryID    string
	Checksum     string
	AttachmentID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("pdf %s already attached as %s in library %s", e.Checksum, e.AttachmentID, e.LibraryID)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// IntegrityError reports a checksum mismatch between expected and downloaded bytes.
type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// SchemaVersionError reports a sidecar written with an unsupported schema.
type SchemaVersionError struct {
	Got  int
	Want int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf("unsupported schema version %d (want %d)", e.Got, e.Want)
}

func (e *SchemaVersionError) Unwrap() error { return ErrSchemaVersion }

// MalformedEnvelopeError reports a sidecar that parsed as JSON but has the wrong shape.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return "malformed envelope: " + e.Reason
}

func (e *MalformedEnvelopeError) Unwrap() error { return ErrMalformedEnvelope }
