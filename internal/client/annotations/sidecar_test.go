package annotations

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freezeNow(t *testing.T, ts time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = orig })
}

func TestBuildSerializeParse_RoundTrip(t *testing.T) {
	freezeNow(t, t0)

	anns := []models.Annotation{highlight("h1", 1, 500, t0, "x"), note("n1", 2, 10, t0)}
	env := Build("att1", anns, 4, "u1")

	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, t0, env.LastModified)

	raw, err := Serialize(env)
	require.NoError(t, err)

	got, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(env, got))
}

func TestSerialize_WireKeys(t *testing.T) {
	freezeNow(t, t0)

	raw, err := Serialize(Build("att1", nil, 1, "u1"))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, map[string]any{
		"schemaVersion": 1.0,
		"attachmentId":  "att1",
		"lastModified":  "2024-03-10T09:00:00Z",
		"version":       1.0,
		"createdBy":     "u1",
		"annotations":   []any{},
	}, generic)
}

func TestParse_SchemaVersion(t *testing.T) {
	_, err := Parse([]byte(`{"schemaVersion":2,"attachmentId":"a","version":1,"annotations":[]}`))
	require.ErrorIs(t, err, common.ErrSchemaVersion)

	var sv *common.SchemaVersionError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, 2, sv.Got)

	_, err = Parse([]byte(`{"attachmentId":"a","version":1,"annotations":[]}`))
	assert.ErrorIs(t, err, common.ErrSchemaVersion)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"annotations object", `{"schemaVersion":1,"attachmentId":"a","version":1,"annotations":{}}`},
		{"annotations missing", `{"schemaVersion":1,"attachmentId":"a","version":1}`},
		{"annotations null", `{"schemaVersion":1,"attachmentId":"a","version":1,"annotations":null}`},
		{"unknown annotation type", `{"schemaVersion":1,"attachmentId":"a","version":1,"annotations":[{"id":"x","type":"ink","page":1}]}`},
		{"page zero", `{"schemaVersion":1,"attachmentId":"a","version":1,"annotations":[{"id":"x","type":"note","page":0,"position":{"x":1,"y":1}}]}`},
		{"highlight without rects", `{"schemaVersion":1,"attachmentId":"a","version":1,"annotations":[{"id":"x","type":"highlight","page":1}]}`},
		{"missing attachment", `{"schemaVersion":1,"version":1,"annotations":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.ErrorIs(t, err, common.ErrMalformedEnvelope)
		})
	}
}
