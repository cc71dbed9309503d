package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// repoInfo is the subset of the Hub's repo-info JSON response we need:
// the list of files ("siblings") present in the repository.
type repoInfo struct {
	Siblings []struct {
		Name string `json:"rfilename"`
	} `json:"siblings"`
}

// DownloadInfo fetches (and caches in memory) the repo's file listing.
// If force is true, it always re-fetches even if already cached.
func (r *Repo) DownloadInfo(force bool) error {
	if r.info != nil && !force {
		return nil
	}
	url := r.Endpoint + "/api/models/" + r.ID + "/revision/" + r.Revision
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "building request for repo info of %q", r.ID)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching repo info for %q", r.ID)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(errRepoFileNotFound, "repo %q not found", r.ID)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching repo info for %q: status %s", r.ID, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading repo info for %q", r.ID)
	}
	var info repoInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return errors.Wrapf(err, "parsing repo info for %q", r.ID)
	}
	r.info = &info
	return nil
}

// HasFile reports whether fileName is listed among the repo's files.
// It triggers a (cached) download of the repo info, not of the file itself.
func (r *Repo) HasFile(fileName string) bool {
	if err := r.DownloadInfo(false); err != nil {
		return false
	}
	for _, s := range r.info.Siblings {
		if s.Name == fileName {
			return true
		}
	}
	return false
}

// IterFileNames iterates over the file names stored in the repo.
// It doesn't trigger the downloading of the files themselves, only of the repo info.
func (r *Repo) IterFileNames() iter.Seq2[string, error] {
	err := r.DownloadInfo(false)
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	}
	return func(yield func(string, error) bool) {
		for _, si := range r.info.Siblings {
			fileName := si.Name
			if path.IsAbs(fileName) || strings.Contains(fileName, "..") {
				yield("", errors.Errorf("repo %q contains illegal file name %q -- it cannot be an absolute path, nor contain \"..\"",
					r.ID, fileName))
				return
			}
			if !yield(fileName, nil) {
				return
			}
		}
	}
}

// String implements fmt.Stringer for debugging/log messages.
func (r *Repo) String() string {
	return fmt.Sprintf("%s@%s", r.ID, r.Revision)
}
