package annotations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/validation"
)

// SchemaVersion is the only sidecar schema this build reads and writes.
const SchemaVersion = 1

// Envelope is the sidecar document. Field order is the wire order.
type Envelope struct {
	SchemaVersion int                `json:"schemaVersion"`
	AttachmentID  string             `json:"attachmentId" validate:"required"`
	LastModified  time.Time          `json:"lastModified"`
	Version       int64              `json:"version" validate:"gte=0"`
	CreatedBy     string             `json:"createdBy"`
	Annotations   models.Annotations `json:"annotations"`
}

var (
	now       = time.Now
	validator = validation.New()
)

// Build wraps annotations in an envelope stamped with the current time.
func Build(attachmentID string, anns []models.Annotation, version int64, authorID string) Envelope {
	list := models.Annotations(anns).Clone()
	return Envelope{
		SchemaVersion: SchemaVersion,
		AttachmentID:  attachmentID,
		LastModified:  now().UTC(),
		Version:       version,
		CreatedBy:     authorID,
		Annotations:   list,
	}
}

// Serialize encodes env as indented JSON.
func Serialize(env Envelope) ([]byte, error) {
	if env.Annotations == nil {
		env.Annotations = models.Annotations{}
	}
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sidecar: %w", err)
	}
	return b, nil
}

// probe reads the fields that decide whether the rest is worth decoding.
type probe struct {
	SchemaVersion *int            `json:"schemaVersion"`
	Annotations   json.RawMessage `json:"annotations"`
}

// Parse decodes a sidecar. A schema other than SchemaVersion yields
// *common.SchemaVersionError; a document of the wrong shape yields
// *common.MalformedEnvelopeError.
func Parse(raw []byte) (Envelope, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return Envelope{}, &common.MalformedEnvelopeError{Reason: err.Error()}
	}

	got := 0
	if p.SchemaVersion != nil {
		got = *p.SchemaVersion
	}
	if got != SchemaVersion {
		return Envelope{}, &common.SchemaVersionError{Got: got, Want: SchemaVersion}
	}

	trimmed := bytes.TrimSpace(p.Annotations)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Envelope{}, &common.MalformedEnvelopeError{Reason: "annotations is not an array"}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if errors.Is(err, common.ErrMalformedEnvelope) {
			return Envelope{}, err
		}
		return Envelope{}, &common.MalformedEnvelopeError{Reason: err.Error()}
	}

	if err := validator.Struct(env); err != nil {
		return Envelope{}, &common.MalformedEnvelopeError{Reason: err.Error()}
	}
	for _, a := range env.Annotations {
		if err := validator.Struct(a); err != nil {
			return Envelope{}, &common.MalformedEnvelopeError{Reason: err.Error()}
		}
	}
	return env, nil
}
