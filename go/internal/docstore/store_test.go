package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFieldsKeepsNumbers(t *testing.T) {
	t.Parallel()

	data, err := EncodeFields(Fields{"isPlaying": true, "speed": 0.75, "currentImage": 2, "duration": 60})
	require.NoError(t, err)

	fields, err := DecodeFields(data)
	require.NoError(t, err)

	assert.Equal(t, true, fields["isPlaying"])
	assert.Equal(t, json.Number("0.75"), fields["speed"])
	assert.Equal(t, json.Number("2"), fields["currentImage"])
	assert.Equal(t, json.Number("60"), fields["duration"])
}

func TestDecodeFieldsRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeFields([]byte("not json"))
	assert.Error(t, err)

	fields, err := DecodeFields([]byte("null"))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	orig := Fields{"speed": 1.0}
	c := orig.Clone()
	c["speed"] = 2.0

	assert.Equal(t, 1.0, orig["speed"])
	assert.Nil(t, Fields(nil).Clone())
}
