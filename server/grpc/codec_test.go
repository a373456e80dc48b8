package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexi-lab/nexus-sub005/api/nexusv1"
)

func TestJSONCodec_Name(t *testing.T) {
	assert.Equal(t, "json", (jsonCodec{}).Name())
}

func TestJSONCodec_MarshalUnmarshal_Roundtrip(t *testing.T) {
	c := jsonCodec{}
	req := &nexusv1.CheckRequest{
		Tenant:   "t1",
		Relation: "viewer",
		Object:   nexusv1.ObjectRef{Type: "file", ID: "/a.txt"},
	}

	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got nexusv1.CheckRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, *req, got)
}

func TestJSONCodec_UnmarshalInvalidJSON(t *testing.T) {
	c := jsonCodec{}
	var out nexusv1.CheckRequest
	err := c.Unmarshal([]byte("not json"), &out)
	assert.Error(t, err)
}
