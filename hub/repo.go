// Package hub implements the "bytes-by-URL" loader boundary used by the
// tokenizer vocabulary loaders: it resolves a repository id to file URLs,
// downloads them to a local on-disk cache (coordinated across processes with
// a file lock), and hands back either a local path or the bytes themselves.
//
// It deliberately knows nothing about tokenizer file formats: that's the
// tokenizer packages' job. hub only fetches and caches bytes.
package hub

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// DefaultDirCreationPerm is used whenever hub creates directories in the cache.
	DefaultDirCreationPerm = 0755

	defaultEndpoint = "https://huggingface.co"
)

// Repo identifies a remote repository (by convention, a HuggingFace Hub
// repository id like "openai-community/gpt2") and the local cache it is
// downloaded to.
type Repo struct {
	ID       string
	Revision string

	// CacheDir is where downloaded files are stored, keyed by ID/Revision.
	// Defaults to "gotok/hub" under os.UserCacheDir() (e.g.
	// "$HOME/.cache/gotok/hub" on Linux), or "gotok-hub-cache" under
	// os.TempDir() if there is no user cache directory.
	CacheDir string

	// Endpoint is the base URL files are resolved against. Defaults to
	// the HuggingFace Hub endpoint.
	Endpoint string

	authToken string
	client    *http.Client

	// info is lazily populated by DownloadInfo.
	info *repoInfo
}

// Option configures a Repo at construction time.
type Option func(*Repo)

// WithRevision pins the repo to a specific revision (branch, tag or commit).
func WithRevision(revision string) Option {
	return func(r *Repo) { r.Revision = revision }
}

// WithCacheDir overrides the default on-disk cache directory.
func WithCacheDir(dir string) Option {
	return func(r *Repo) { r.CacheDir = dir }
}

// WithAuthToken sets a bearer token sent with every request, for gated repos.
func WithAuthToken(token string) Option {
	return func(r *Repo) { r.authToken = token }
}

// WithHTTPClient overrides the *http.Client used to fetch files.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Repo) { r.client = c }
}

// WithEndpoint overrides the hub endpoint files are resolved against.
func WithEndpoint(endpoint string) Option {
	return func(r *Repo) { r.Endpoint = endpoint }
}

// New creates a Repo for the given repository id.
func New(id string, opts ...Option) *Repo {
	r := &Repo{
		ID:       id,
		Revision: "main",
		Endpoint: defaultEndpoint,
		client:   http.DefaultClient,
	}
	if dir, err := os.UserCacheDir(); err == nil {
		r.CacheDir = filepath.Join(dir, "gotok", "hub")
	} else {
		r.CacheDir = filepath.Join(os.TempDir(), "gotok-hub-cache")
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// localDir returns the cache directory for this repo's blobs.
func (r *Repo) localDir() string {
	safeID := filepath.FromSlash(r.ID)
	return filepath.Join(r.CacheDir, safeID, r.Revision)
}

// fileURL builds the URL used to fetch a file from the repo.
func (r *Repo) fileURL(fileName string) string {
	return r.Endpoint + "/" + r.ID + "/resolve/" + r.Revision + "/" + fileName
}

// errRepoFileNotFound is the sentinel cause for a missing repo file, so
// callers can distinguish "not found" from other IOErrors with errors.Is.
var errRepoFileNotFound = errors.New("repo file not found")

// IsFileNotFound reports whether err ultimately wraps a "file not found" cause.
func IsFileNotFound(err error) bool {
	return errors.Is(err, errRepoFileNotFound)
}
