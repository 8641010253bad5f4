//go:build unix

package lockedfile

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestLockExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg", ".lock")

	unlock, err := MutexAt(path).Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// flock locks belong to the open file description, so a second open
	// of the same path conflicts even within one process.
	if _, err := MutexAt(path).TryLock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("TryLock while held = %v, want ErrLocked", err)
	}

	unlock()

	unlock2, err := MutexAt(path).TryLock()
	if err != nil {
		t.Fatalf("TryLock after unlock: %v", err)
	}
	unlock2()
}
