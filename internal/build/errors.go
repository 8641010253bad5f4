package build

import (
	"fmt"

	"github.com/goplus/xarch/pkgs/buildsys"
)

// Stage names a step of an architecture build.
type Stage string

const (
	StageClean       Stage = "clean"
	StagePrepare     Stage = "prepare"
	StageEnvironment Stage = "environment"
	StageBootstrap   Stage = "bootstrap"
	StageCompile     Stage = "compile"
	StageCopy        Stage = "copy"
	StageMerge       Stage = "merge"
)

// Error is a failed architecture build. Err keeps the cause, so
// errors.Is(err, buildsys.ErrBuild) and friends still match.
type Error struct {
	Stage   Stage
	Target  buildsys.Target
	Arch    string
	Package string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("build %s for %s/%s: %s: %v", e.Package, e.Target, e.Arch, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
