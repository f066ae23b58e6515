package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingEncoderLines(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, false)
	require.NoError(t, err)

	require.NoError(t, enc.Encode(map[string]interface{}{"id": "a", "url": "https://x/?a=1&b=2"}))
	require.NoError(t, enc.Encode(map[string]interface{}{"id": "b"}))
	require.NoError(t, enc.Close())

	assert.Equal(t, "{\"id\":\"a\",\"url\":\"https://x/?a=1&b=2\"}\n{\"id\":\"b\"}\n", out.String())
	assert.Equal(t, 2, enc.Count())
}

func TestStreamingEncoderArray(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, true)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, enc.Encode(map[string]string{"id": id}))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())

	var decoded []map[string]string
	require.NoError(t, Unmarshal(out.Bytes(), &decoded))
	assert.Len(t, decoded, 3)
	assert.Equal(t, "c", decoded[2]["id"])
}

func TestStreamingEncoderEmptyArray(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewStreamingEncoder(&out, true)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	assert.Equal(t, "[]\n", out.String())
}

func TestDecodeKeepsNumbers(t *testing.T) {
	var v map[string]interface{}
	require.NoError(t, Decode(strings.NewReader(`{"n": 12345678901234567890}`), &v))
	n, ok := v["n"].(Number)
	require.True(t, ok)
	assert.Equal(t, "12345678901234567890", n.String())
}
