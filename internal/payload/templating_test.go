package payload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDefaultMessage(t *testing.T) {
	src, err := NewSource(NewEngine(), "", "", nil)
	require.NoError(t, err)

	msg, err := src.Message(4)
	require.NoError(t, err)
	assert.Equal(t, "Hello world - 4", string(msg.Value))
	assert.Empty(t, msg.Key)
	assert.EqualValues(t, 4, msg.Index)
}

func TestSourceShorthandAndHeaders(t *testing.T) {
	headers := map[string]string{"origin": "load"}
	src, err := NewSource(NewEngine(), `{"n":{{index}},"id":"{{uuid}}"}`, "key-{{index}}", headers)
	require.NoError(t, err)

	msg, err := src.Message(12)
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"n":12`)
	assert.Len(t, string(msg.Value), len(`{"n":12,"id":""}`)+36)
	assert.Equal(t, "key-12", msg.Key)
	assert.Equal(t, headers, msg.Headers)
}

func TestSourceRandomFunctions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n\nbeta\n"), 0644))

	src, err := NewSource(NewEngine(),
		`{{randomInt 5 6}} {{randomChoice "x"}} {{randomLine "`+path+`"}}`, "", nil)
	require.NoError(t, err)

	for i := int64(0); i < 5; i++ {
		msg, err := src.Message(i)
		require.NoError(t, err)
		assert.Regexp(t, `^5 x (alpha|beta)$`, string(msg.Value))
	}
}

func TestSourceBadTemplate(t *testing.T) {
	_, err := NewSource(NewEngine(), "{{.Index", "", nil)
	assert.Error(t, err)
}

func TestSourceMissingFile(t *testing.T) {
	src, err := NewSource(NewEngine(), `{{randomLine "/does/not/exist"}}`, "", nil)
	require.NoError(t, err)

	_, err = src.Message(0)
	assert.Error(t, err)
}
