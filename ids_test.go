package twitter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID("1577730467436138524")
	require.NoError(t, err)
	assert.Equal(t, uint64(1577730467436138524), id)

	id, err = ParseID("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), id)

	_, err = ParseID("18446744073709551616")
	assert.ErrorIs(t, err, ErrIDOverflow)

	for _, bad := range []string{"", "-1", "12a", "1.5", " 1"} {
		_, err = ParseID(bad)
		assert.ErrorIs(t, err, ErrInvalidID, "input %q", bad)
	}
}

func TestParseOptionalID(t *testing.T) {
	id, err := parseOptionalID("")
	require.NoError(t, err)
	assert.Zero(t, id)

	id, err = parseOptionalID("7")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestFlexID(t *testing.T) {
	var v struct {
		A flexID `json:"a"`
		B flexID `json:"b"`
		C flexID `json:"c"`
	}
	// A bare number past 2^53 must keep every digit.
	err := json.Unmarshal([]byte(`{"a":"123","b":1577730467436138524,"c":null}`), &v)
	require.NoError(t, err)
	assert.Equal(t, "123", v.A.String())
	assert.Equal(t, "1577730467436138524", v.B.String())
	assert.Empty(t, v.C.String())
}

func TestFirstID(t *testing.T) {
	assert.Equal(t, "2", firstID("", "2", "3"))
	assert.Empty(t, firstID("", ""))
}
