// Package libmerge combines static libraries: several thin archives of one
// architecture into a single archive, and per-architecture archives of the
// same library into one fat archive.
package libmerge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/goplus/xarch/pkgs/buildsys"
)

// Runner executes a tool with arguments.
type Runner func(stdout, stderr io.Writer, name string, args ...string) error

func execRunner(stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Tools merges libraries with the toolchain's libtool and lipo.
type Tools struct {
	Toolchain buildsys.Toolchain
	Stdout    io.Writer
	Stderr    io.Writer

	run Runner
	l   hclog.Logger
}

var _ buildsys.Merger = (*Tools)(nil)

// New returns Tools resolving libtool and lipo through tc.
func New(l hclog.Logger, tc buildsys.Toolchain) *Tools {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Tools{
		Toolchain: tc,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		run:       execRunner,
		l:         l.Named("libmerge"),
	}
}

// Merge combines inputs, all built for one architecture, into outDir/name.
func (t *Tools) Merge(inputs []string, outDir, name string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input libraries for %s", buildsys.ErrMerge, name)
	}
	libtool, err := t.Toolchain.Find("libtool")
	if err != nil {
		return err
	}
	out := filepath.Join(outDir, name)
	args := append([]string{"-static", "-o", out}, inputs...)
	t.l.Debug("merging libraries", "output", out, "inputs", inputs)
	if err := t.run(t.Stdout, t.Stderr, libtool, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", buildsys.ErrMerge, name, err)
	}
	return nil
}

// Fat combines the per-architecture archives in thin into one
// multi-architecture archive at output.
func (t *Tools) Fat(output string, thin []string) error {
	if len(thin) == 0 {
		return fmt.Errorf("%w: no thin libraries for %s", buildsys.ErrMerge, output)
	}
	lipo, err := t.Toolchain.Find("lipo")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	args := append([]string{"-create", "-output", output}, thin...)
	t.l.Debug("creating fat library", "output", output, "inputs", thin)
	if err := t.run(t.Stdout, t.Stderr, lipo, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", buildsys.ErrMerge, filepath.Base(output), err)
	}
	return nil
}

// FatDir creates one fat library per file name found in the thin dirs. Every
// thin dir must hold the same set of libraries.
func (t *Tools) FatDir(outDir string, thinDirs []string) ([]string, error) {
	if len(thinDirs) == 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(thinDirs[0])
	if err != nil {
		return nil, err
	}
	var outputs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		inputs := make([]string, 0, len(thinDirs))
		for _, dir := range thinDirs {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err != nil {
				return nil, fmt.Errorf("%w: %s missing from %s", buildsys.ErrMerge, name, dir)
			}
			inputs = append(inputs, p)
		}
		out := filepath.Join(outDir, name)
		if err := t.Fat(out, inputs); err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return nil, errors.New("no libraries to merge in " + thinDirs[0])
	}
	return outputs, nil
}
