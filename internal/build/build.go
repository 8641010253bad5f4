package build

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/goplus/xarch/formula"
	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/buildsys/archenv"
)

// Sanitizer resets a source tree before a build.
type Sanitizer interface {
	Clean(dir string) error
}

// Runner runs the optional bootstrap and configure/make in a source tree.
type Runner interface {
	Run(dir string, env *archenv.Env, options []string, bootstrap bool) error
}

// EnvBuilder produces the environment of one architecture.
type EnvBuilder interface {
	Build(target buildsys.Target, arch, headersDir, libsDir string) (*archenv.Env, error)
}

// Request asks for one architecture of one package.
type Request struct {
	Target  buildsys.Target
	Arch    string
	Package *formula.Package
	// Force is accepted for callers that expect it. Builds always start
	// from a clean tree, so it changes nothing.
	Force bool
}

// Options configures a Builder.
type Options struct {
	// WorkspaceDir holds the per-package output dirs.
	WorkspaceDir string

	Sanitizer Sanitizer
	Runner    Runner
	Env       EnvBuilder
	Merger    buildsys.Merger

	Logger hclog.Logger
}

// Builder builds packages one architecture at a time. It keeps no state
// between calls; callers must not run two builds of the same package and
// architecture at once.
type Builder struct {
	workspaceDir string

	sanitizer Sanitizer
	runner    Runner
	env       EnvBuilder
	merger    buildsys.Merger

	l hclog.Logger
}

// NewBuilder returns a Builder wired with opts.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.WorkspaceDir == "" {
		return nil, errors.New("build: workspace dir is required")
	}
	if opts.Sanitizer == nil || opts.Runner == nil || opts.Env == nil || opts.Merger == nil {
		return nil, errors.New("build: sanitizer, runner, env and merger are required")
	}
	l := opts.Logger
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Builder{
		workspaceDir: opts.WorkspaceDir,
		sanitizer:    opts.Sanitizer,
		runner:       opts.Runner,
		env:          opts.Env,
		merger:       opts.Merger,
		l:            l.Named("build"),
	}, nil
}

// BuildArch builds req.Arch of req.Package and returns the thin library dir
// holding the results. On failure the thin dir is left as it is for
// inspection and the error is a *Error naming the failed stage.
func (b *Builder) BuildArch(req Request) (string, error) {
	pkg := req.Package
	if pkg == nil {
		return "", errors.New("build: request without package")
	}
	l := b.l.With("package", pkg.Name, "target", req.Target, "arch", req.Arch)
	fail := func(stage Stage, err error) (string, error) {
		l.Error("build failed", "stage", stage, "error", err)
		return "", &Error{Stage: stage, Target: req.Target, Arch: req.Arch, Package: pkg.Name, Err: err}
	}

	dir := pkg.Dir
	l.Info("building", "dir", dir)
	if req.Force {
		l.Debug("force requested; every build starts from a clean tree")
	}

	if err := b.sanitizer.Clean(dir); err != nil {
		return fail(StageClean, err)
	}
	l.Debug("state", "state", "SourceCleaned")

	thinDir, err := b.ThinDir(pkg.Name, req.Target, req.Arch)
	if err != nil {
		return fail(StagePrepare, err)
	}
	if err := recreate(thinDir); err != nil {
		return fail(StagePrepare, err)
	}

	env, err := b.env.Build(req.Target, req.Arch, pkg.HeadersDir(), pkg.ExtraLibsDir(string(req.Target), req.Arch))
	if err != nil {
		return fail(StageEnvironment, err)
	}
	l.Debug("state", "state", "EnvironmentReady")

	if err := b.runner.Run(dir, env, pkg.Options(), pkg.Bootstrap); err != nil {
		if errors.Is(err, buildsys.ErrBootstrap) {
			return fail(StageBootstrap, err)
		}
		return fail(StageCompile, err)
	}
	l.Debug("state", "state", "Compiled")

	libs := pkg.LibraryPaths()
	if pkg.MergedLibrary == "" {
		for _, lib := range libs {
			if err := copyFile(lib, thinDir); err != nil {
				return fail(StageCopy, err)
			}
		}
	} else if err := b.merger.Merge(libs, thinDir, pkg.MergedLibrary); err != nil {
		if !errors.Is(err, buildsys.ErrMerge) {
			err = fmt.Errorf("%w: %w", buildsys.ErrMerge, err)
		}
		return fail(StageMerge, err)
	}
	l.Debug("state", "state", "OutputStaged")
	l.Info("built", "output", thinDir)
	return thinDir, nil
}

// recreate empties dir, creating it when needed.
func recreate(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// copyFile copies src into dstDir under its base name, keeping its mode.
func copyFile(src, dstDir string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(filepath.Join(dstDir, filepath.Base(src)), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
