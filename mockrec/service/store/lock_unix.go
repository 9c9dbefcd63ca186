//go:build unix

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// rootLock is an advisory lock shared by every mockrec process writing under the same
// storage root. Writers hold it shared; clearing the root holds it exclusively.
type rootLock struct {
	path string
}

func newRootLock(root string) *rootLock {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := sha256.Sum256([]byte(abs))
	name := "mockrec-" + hex.EncodeToString(sum[:8]) + ".lock"
	return &rootLock{path: filepath.Join(os.TempDir(), name)}
}

// acquire blocks until the lock is held and returns its release func.
func (l *rootLock) acquire(exclusive bool) (func(), error) {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err = unix.Flock(int(file.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return func() {
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()
	}, nil
}
