package bpe

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// fetchCachedURL downloads url into the local cache directory, keyed by
// cacheName, and returns its bytes. A sibling lock file and a
// uuid-suffixed temp file make concurrent callers (including separate
// processes) safe, mirroring the hub package's download discipline for
// flat, non-Hub-shaped blob URLs such as tiktoken's and open_clip's public
// vocabulary files.
func fetchCachedURL(ctx context.Context, url, cacheName string) ([]byte, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache dir %q", dir)
	}
	dst := filepath.Join(dir, cacheName)

	if b, err := os.ReadFile(dst); err == nil {
		return b, nil
	}

	lock := flock.New(dst + ".lock")
	locked := false
	for attempt := 0; attempt < 100 && !locked; attempt++ {
		locked, err = lock.TryLock()
		if err != nil {
			return nil, errors.Wrap(err, "acquiring cache lock")
		}
		if !locked {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if !locked {
		return nil, errors.New("timed out acquiring cache lock")
	}
	defer lock.Unlock()

	if b, err := os.ReadFile(dst); err == nil {
		return b, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %q", url)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %q", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %q: status %s", url, resp.Status)
	}

	tmp := dst + ".downloading." + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp file %q", tmp)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, errors.Wrapf(err, "writing %q", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, errors.Wrapf(err, "renaming %q to %q", tmp, dst)
	}
	return os.ReadFile(dst)
}

func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gotok-tokenizers", "bpe"), nil
}
