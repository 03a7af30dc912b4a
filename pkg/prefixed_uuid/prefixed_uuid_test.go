package prefixed_uuid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := New("exec")
	assert.Equal(t, "exec", id.Prefix)
	assert.NotEqual(t, uuid.Nil, id.UUID)
	assert.False(t, id.IsZero())

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "nouuid", "-" + uuid.NewString(), "exec-not-a-uuid"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestJSON(t *testing.T) {
	type record struct {
		ID PrefixedUUID `json:"id"`
	}
	in := record{ID: New("paste")}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+in.ID.String()+`"}`, string(data))

	var out record
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"bogus"}`), &out))
}

func TestZero(t *testing.T) {
	assert.True(t, PrefixedUUID{}.IsZero())
}
