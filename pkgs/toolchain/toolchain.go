// Package toolchain locates compiler tools and platform SDKs on the host.
package toolchain

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/goplus/xarch/pkgs/buildsys"
)

// NotFoundError reports a tool the toolchain could not resolve.
type NotFoundError struct {
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", buildsys.ErrToolNotFound, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s", buildsys.ErrToolNotFound, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == buildsys.ErrToolNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Xcrun resolves tools and SDK roots through xcrun. Lookups happen on first
// use and are memoized, so a missing tool surfaces as an error from Find
// rather than at startup.
type Xcrun struct {
	// DeveloperDir, when set, is exported as DEVELOPER_DIR to pick a
	// non-default Xcode installation.
	DeveloperDir string

	run func(env []string, args ...string) (string, error)

	mu    sync.Mutex
	tools map[string]string
	sdks  map[buildsys.Variant]string
}

var (
	_ buildsys.Toolchain  = (*Xcrun)(nil)
	_ buildsys.SDKLocator = (*Xcrun)(nil)
)

// NewXcrun returns an xcrun-backed resolver.
func NewXcrun(developerDir string) *Xcrun {
	return &Xcrun{
		DeveloperDir: developerDir,
		run:          xcrun,
		tools:        make(map[string]string),
		sdks:         make(map[buildsys.Variant]string),
	}
}

// Find returns the absolute path of the named tool, e.g. "cc" or "ranlib".
func (x *Xcrun) Find(name string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if p, ok := x.tools[name]; ok {
		return p, nil
	}
	out, err := x.run(x.environ(), "--find", name)
	if err != nil {
		return "", &NotFoundError{Name: name, Err: err}
	}
	if out == "" {
		return "", &NotFoundError{Name: name}
	}
	x.tools[name] = out
	return out, nil
}

// SDKRoot returns the SDK path reported by xcrun for the variant. The path
// is not checked for existence here.
func (x *Xcrun) SDKRoot(v buildsys.Variant) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if p, ok := x.sdks[v]; ok {
		return p, nil
	}
	out, err := x.run(x.environ(), "--sdk", v.SDKName(), "--show-sdk-path")
	if err != nil {
		return "", fmt.Errorf("%w: locate %s sdk: %v", buildsys.ErrConfiguration, v.SDKName(), err)
	}
	x.sdks[v] = out
	return out, nil
}

func (x *Xcrun) environ() []string {
	if x.DeveloperDir == "" {
		return nil
	}
	return []string{"DEVELOPER_DIR=" + x.DeveloperDir}
}

func xcrun(env []string, args ...string) (string, error) {
	cmd := exec.Command("xcrun", args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Static is a fixed resolver, handy for pinned toolchains and tests.
type Static struct {
	Tools map[string]string
	SDKs  map[buildsys.Variant]string
}

func (s *Static) Find(name string) (string, error) {
	if p, ok := s.Tools[name]; ok {
		return p, nil
	}
	return "", &NotFoundError{Name: name}
}

func (s *Static) SDKRoot(v buildsys.Variant) (string, error) {
	if p, ok := s.SDKs[v]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: no %s sdk configured", buildsys.ErrConfiguration, v.SDKName())
}
