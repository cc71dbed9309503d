package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadBytes(t *testing.T) {
	const body = "hello vocabulary"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	r := New("some/repo", WithEndpoint(srv.URL), WithCacheDir(t.TempDir()))
	data, err := r.DownloadBytes("vocab.txt")
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestDownloadFileReusesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("content"))
	}))
	t.Cleanup(srv.Close)

	r := New("some/repo", WithEndpoint(srv.URL), WithCacheDir(t.TempDir()))
	path1, err := r.DownloadFile("model.bin")
	require.NoError(t, err)
	path2, err := r.DownloadFile("model.bin")
	require.NoError(t, err)
	assert.Equal(t, path1, path2)
	assert.Equal(t, 1, calls, "second DownloadFile should hit the cache, not the network")
}

func TestDownloadFileForceRedownloads(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("content"))
	}))
	t.Cleanup(srv.Close)

	r := New("some/repo", WithEndpoint(srv.URL), WithCacheDir(t.TempDir()))
	_, err := r.DownloadFile("model.bin")
	require.NoError(t, err)
	_, err = r.DownloadFileContext(context.Background(), "model.bin", true)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDownloadFileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	r := New("some/repo", WithEndpoint(srv.URL), WithCacheDir(t.TempDir()))
	_, err := r.DownloadFile("missing.bin")
	require.Error(t, err)
	assert.True(t, IsFileNotFound(err))
}

func TestDownloadFileLeavesNoTempFilesOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("content"))
	}))
	t.Cleanup(srv.Close)

	cacheDir := t.TempDir()
	r := New("some/repo", WithEndpoint(srv.URL), WithCacheDir(cacheDir))
	path, err := r.DownloadFile("model.bin")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".downloading.")
	}
}
