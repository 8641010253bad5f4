// Package lockedfile provides an advisory inter-process mutex backed by
// flock(2) on a lock file.
package lockedfile

import (
	"errors"
	"fmt"
)

// ErrLocked is returned by TryLock when another holder has the lock.
var ErrLocked = errors.New("lockedfile: already locked")

// A Mutex locks the file at path. The file is created if needed and left
// in place after unlocking.
type Mutex struct {
	path string
}

// MutexAt returns a Mutex for the file at path.
func MutexAt(path string) *Mutex {
	return &Mutex{path: path}
}

func (m *Mutex) String() string {
	return fmt.Sprintf("lockedfile.Mutex(%s)", m.path)
}

// Lock blocks until the lock is held and returns the function that
// releases it.
func (m *Mutex) Lock() (unlock func(), err error) {
	return m.lock(true)
}

// TryLock acquires the lock without waiting, failing with ErrLocked when
// it is held elsewhere.
func (m *Mutex) TryLock() (unlock func(), err error) {
	return m.lock(false)
}
