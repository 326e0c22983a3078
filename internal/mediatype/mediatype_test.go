package mediatype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestDeclaredPrefersHeader(t *testing.T) {
	assert.Equal(t, "image/jpeg", Declared("image/jpeg", pngHeader))
	assert.Equal(t, "text/plain", Declared("Text/Plain; charset=utf-8", pngHeader))
}

func TestDeclaredFallsBackToSniffing(t *testing.T) {
	assert.Equal(t, "image/png", Declared("", pngHeader))
	assert.Equal(t, "image/png", Declared("application/octet-stream", pngHeader))
	assert.Equal(t, "image/gif", Declared("", []byte("GIF89a\x01\x00\x01\x00")))
	assert.Equal(t, "text/plain", Declared("", []byte("hello")))
}

func TestDetectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avatar.bin")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	mt, err := DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	_, err = DetectFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
