package build

import (
	"os"
	"path/filepath"

	"github.com/goplus/xarch/pkgs/buildsys/archenv"
)

// mockSanitizer records cleaned dirs.
type mockSanitizer struct {
	dirs []string
	err  error
}

func (m *mockSanitizer) Clean(dir string) error {
	m.dirs = append(m.dirs, dir)
	return m.err
}

type runCall struct {
	dir       string
	env       *archenv.Env
	options   []string
	bootstrap bool
}

// mockRunner pretends to build: it writes every output library into the
// source tree. before runs first so tests can check preconditions.
type mockRunner struct {
	calls   []runCall
	outputs []string
	before  func()
	err     error
}

func (m *mockRunner) Run(dir string, env *archenv.Env, options []string, bootstrap bool) error {
	if m.before != nil {
		m.before()
	}
	m.calls = append(m.calls, runCall{dir: dir, env: env, options: options, bootstrap: bootstrap})
	if m.err != nil {
		return m.err
	}
	for _, out := range m.outputs {
		p := filepath.Join(dir, out)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte("!<arch>\n"+env.Arch), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type mergeCall struct {
	inputs []string
	outDir string
	name   string
}

// mockMerger records merge requests.
type mockMerger struct {
	calls []mergeCall
	err   error
}

func (m *mockMerger) Merge(inputs []string, outDir, name string) error {
	m.calls = append(m.calls, mergeCall{inputs: inputs, outDir: outDir, name: name})
	return m.err
}
