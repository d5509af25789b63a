package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_RoundTrip(t *testing.T) {
	title := "Attention"
	in := &PushItemResponse{
		Accepted: false,
		Current: &Item{
			ID: "i1", LibraryID: "lib", Type: "preprint", Title: &title,
			Authors: []Author{{Given: "A", Family: "Vaswani"}}, Tags: []string{"nlp"},
			Version: 4, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}

	var c Codec
	b, err := c.Marshal(in)
	require.NoError(t, err)

	var out PushItemResponse
	require.NoError(t, c.Unmarshal(b, &out))
	assert.Equal(t, in, &out)
}

func TestCodec_UnmarshalError(t *testing.T) {
	var out PingResponse
	err := Codec{}.Unmarshal([]byte("{"), &out)
	assert.Error(t, err)
}

func TestMethodNames(t *testing.T) {
	assert.Equal(t, "/refkeeper.v1.Authority/PushItem", MethodPushItem)
}
