package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goplus/xarch/pkgs/buildsys"
)

// Workspace directory layout:
//
//	workspaceDir/
//	  <package>/
//	    .lock                  # held by the CLI while the package builds
//	    src/                   # default source tree when the formula has no dir
//	    thin/
//	      <target>-<arch>/     # one architecture's libraries
//	    <target>/              # fat libraries of every built architecture
const thinDirName = "thin"

// PackageDir returns workspaceDir/<package>.
func (b *Builder) PackageDir(pkg string) (string, error) {
	return packageDir(b.workspaceDir, pkg)
}

// ThinDir returns workspaceDir/<package>/thin/<target>-<arch>.
func (b *Builder) ThinDir(pkg string, target buildsys.Target, arch string) (string, error) {
	dir, err := b.PackageDir(pkg)
	if err != nil {
		return "", err
	}
	if err := checkElem("architecture", arch); err != nil {
		return "", err
	}
	if err := checkElem("target", string(target)); err != nil {
		return "", err
	}
	return filepath.Join(dir, thinDirName, string(target)+"-"+arch), nil
}

// FatDir returns workspaceDir/<package>/<target>.
func (b *Builder) FatDir(pkg string, target buildsys.Target) (string, error) {
	dir, err := b.PackageDir(pkg)
	if err != nil {
		return "", err
	}
	if err := checkElem("target", string(target)); err != nil {
		return "", err
	}
	return filepath.Join(dir, string(target)), nil
}

// SourceDir returns the default source tree of a package.
func SourceDir(workspaceDir, pkg string) (string, error) {
	dir, err := packageDir(workspaceDir, pkg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "src"), nil
}

func packageDir(workspaceDir, pkg string) (string, error) {
	if err := checkElem("package", pkg); err != nil {
		return "", err
	}
	return filepath.Join(workspaceDir, pkg), nil
}

// checkElem rejects values that would escape their directory.
func checkElem(kind, s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid %s name %q", kind, s)
	}
	return nil
}
