// Package gitremote owns the lifecycle of one repository's clone directory:
// a shallow clone on acquisition, and deletion on release, including on the
// panic path.
package gitremote

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ossminer/crawler/internal/apperrors"
)

// Clone is a scoped handle on one repository's working copy. The Runner
// exclusively owns a Clone for the lifetime of one repository's mine; every
// acquisition path must pair with a Release, including via defer, so the
// directory is removed even when the caller panics.
type Clone struct {
	Dir  string
	name string
	log  *logrus.Logger
}

// Acquire clones cloneURL with `git clone --depth 1` into
// tmp_dir/{repoID}, removing any pre-existing directory at that path first.
func Acquire(tmpDir string, repoID int64, name, cloneURL string, log *logrus.Logger) (*Clone, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	dir := filepath.Join(tmpDir, fmt.Sprintf("%d", repoID))

	if _, err := os.Stat(dir); err == nil {
		log.WithField("dir", dir).Warn("gitremote: removing pre-existing clone directory")
		if err := os.RemoveAll(dir); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CloneFailed, "remove pre-existing clone dir for %s", name)
		}
	}

	log.WithField("repo", name).Info("gitremote: starting clone")

	cmd := exec.Command("git", "clone", cloneURL, "--depth", "1", dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CloneFailed, "clone %s: %s", name, string(out))
	}

	log.WithFields(logrus.Fields{"repo": name, "dir": dir}).Info("gitremote: clone finished")
	return &Clone{Dir: dir, name: name, log: log}, nil
}

// Release deletes the clone directory. Safe to call from a defer, including
// on the panic path, and idempotent.
func (c *Clone) Release() {
	if c == nil || c.Dir == "" {
		return
	}
	c.log.WithFields(logrus.Fields{"repo": c.name, "dir": c.Dir}).Info("gitremote: deleting clone directory")
	if err := os.RemoveAll(c.Dir); err != nil {
		c.log.WithError(err).WithField("dir", c.Dir).Warn("gitremote: failed to delete clone directory")
	}
}
