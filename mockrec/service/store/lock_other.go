//go:build !unix

package store

// rootLock is a no-op where flock is unavailable; writes stay atomic through rename.
type rootLock struct{}

func newRootLock(string) *rootLock {
	return &rootLock{}
}

func (l *rootLock) acquire(bool) (func(), error) {
	return func() {}, nil
}
