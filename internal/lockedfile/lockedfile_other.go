//go:build !unix

package lockedfile

import (
	"errors"
	"fmt"
	"runtime"
)

// lock fails on hosts without flock; xarch only builds on macOS.
func (m *Mutex) lock(wait bool) (func(), error) {
	return nil, fmt.Errorf("lock %s: %w on %s", m.path, errors.ErrUnsupported, runtime.GOOS)
}
