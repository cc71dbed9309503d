package hub

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	r := New("openai/clip-vit-base-patch32")
	assert.Equal(t, "openai/clip-vit-base-patch32", r.ID)
	assert.Equal(t, "main", r.Revision)
	assert.Equal(t, defaultEndpoint, r.Endpoint)
	assert.NotEmpty(t, r.CacheDir)
}

func TestNewWithOptions(t *testing.T) {
	r := New("openai/clip-vit-base-patch32",
		WithRevision("v1"),
		WithCacheDir("/tmp/gotok-test-cache"),
		WithAuthToken("secret"),
		WithEndpoint("https://example.test"),
	)
	assert.Equal(t, "v1", r.Revision)
	assert.Equal(t, "/tmp/gotok-test-cache", r.CacheDir)
	assert.Equal(t, "https://example.test", r.Endpoint)
	assert.Equal(t, "secret", r.authToken)
}

func TestLocalDir(t *testing.T) {
	r := New("openai/clip-vit-base-patch32", WithCacheDir("/tmp/gotok-test-cache"), WithRevision("v2"))
	want := filepath.Join("/tmp/gotok-test-cache", filepath.FromSlash("openai/clip-vit-base-patch32"), "v2")
	assert.Equal(t, want, r.localDir())
}

func TestFileURL(t *testing.T) {
	r := New("openai/clip-vit-base-patch32", WithEndpoint("https://example.test"), WithRevision("main"))
	want := "https://example.test/openai/clip-vit-base-patch32/resolve/main/vocab.json"
	assert.Equal(t, want, r.fileURL("vocab.json"))
}

func TestIsFileNotFound(t *testing.T) {
	assert.True(t, IsFileNotFound(errRepoFileNotFound))
	assert.False(t, IsFileNotFound(nil))
}

func TestRepoString(t *testing.T) {
	r := New("openai/clip-vit-base-patch32", WithRevision("abc123"))
	assert.Equal(t, "openai/clip-vit-base-patch32@abc123", r.String())
}
