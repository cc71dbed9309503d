package hub

import (
	"context"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DownloadFile downloads (or reuses a cached copy of) fileName from the repo
// and returns the local path it was stored at.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileContext(context.Background(), fileName, false)
}

// DownloadFileContext is DownloadFile with an explicit context and a
// forceDownload flag to bypass the cache.
func (r *Repo) DownloadFileContext(ctx context.Context, fileName string, forceDownload bool) (string, error) {
	filePath := filepath.Join(r.localDir(), filepath.FromSlash(fileName))
	url := r.fileURL(fileName)
	if err := r.lockedDownload(ctx, url, filePath, forceDownload); err != nil {
		return "", err
	}
	return filePath, nil
}

// DownloadBytes downloads fileName and returns its full contents. This is
// the "bytes-by-URL loader" the tokenizer vocabulary loaders are built on.
func (r *Repo) DownloadBytes(fileName string) ([]byte, error) {
	filePath, err := r.DownloadFile(fileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading downloaded file %q", filePath)
	}
	return data, nil
}

// lockedDownload fetches url to filePath.
//
// If filePath exists and forceDownload is false, it is assumed to already
// have been correctly downloaded, and returns immediately.
//
// It downloads to a uniquely-named temporary file and atomically renames it
// to filePath on success, so a cancelled or crashed download never leaves a
// partial file at filePath.
//
// It uses a filePath+".lock" file to coordinate multiple processes or
// goroutines downloading the same file concurrently.
func (r *Repo) lockedDownload(ctx context.Context, url, filePath string, forceDownload bool) error {
	if fileExists(filePath) {
		if !forceDownload {
			return nil
		}
		if err := os.Remove(filePath); err != nil {
			return errors.Wrapf(err, "failed to remove %q while force-downloading %q", filePath, url)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(lockPath, func() {
		if fileExists(filePath) {
			// Some concurrent other process (or goroutine) already downloaded the file.
			return
		}

		var tmpFileClosed bool
		tmpPath := filePath + ".downloading." + uuid.NewString()
		tmpFile, err := os.Create(tmpPath)
		if err != nil {
			mainErr = errors.Wrapf(err, "creating temporary file for download in %q", tmpPath)
			return
		}
		defer func() {
			if !tmpFileClosed {
				if err := tmpFile.Close(); err != nil {
					log.Printf("hub: failed closing temporary file %q: %v", tmpPath, err)
				}
				if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
					log.Printf("hub: failed removing temporary file %q: %v", tmpPath, err)
				}
			}
		}()

		mainErr = r.fetchTo(ctx, url, tmpFile)
		if mainErr != nil {
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			return
		}

		tmpFileClosed = true
		if err := tmpFile.Close(); err != nil {
			mainErr = errors.Wrapf(err, "failed to close temporary download file %q", tmpPath)
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
			return
		}

		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			log.Printf("hub: warning removing lock file %q: %+v", lockPath, err)
		}
	})
	if mainErr != nil {
		return mainErr
	}
	if errLock != nil {
		return errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return nil
}

// fetchTo streams url's body into dst using the repo's http.Client.
func (r *Repo) fetchTo(ctx context.Context, url string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %q", url)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errRepoFileNotFound, "%q", url)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %q: status %s", url, resp.Status)
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return errors.Wrapf(err, "writing downloaded content of %q", url)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// execOnFileLock opens the lockPath file (or creates if it doesn't yet exist), locks it, and executes the function.
// If the lockPath is already locked, it polls with a 1 to 2 seconds period (randomly), until it acquires the lock.
//
// The lockPath is not removed. It's safe to remove it from the given fn, if one knows that no new calls to
// execOnFileLock with the same lockPath is going to be made.
func execOnFileLock(lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)

	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		time.Sleep(time.Millisecond * time.Duration(1000+rand.Intn(1000)))
	}

	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil {
			if err == nil {
				err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
			} else {
				log.Printf("hub: error unlocking file %q: %v", lockPath, unlockErr)
			}
		}
	}()

	fn()
	return
}
