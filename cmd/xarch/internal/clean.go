package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/xarch/formula"
	"github.com/goplus/xarch/internal/build"
	"github.com/goplus/xarch/pkgs/buildsys/autotools"
)

var (
	cleanOutputs bool
	cleanVerbose bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <formula>",
	Short: "Reset a package's source tree",
	Long: `Clean runs "make clean" and "make distclean" in the package's source tree.
With --outputs it also removes the thin and fat libraries of the package.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanOutputs, "outputs", false, "Also remove built libraries")
	cleanCmd.Flags().BoolVarP(&cleanVerbose, "verbose", "v", false, "Show make output")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup(cleanVerbose)
	if err != nil {
		return err
	}
	pkg, err := loadPackage(cfg, args[0])
	if err != nil {
		return err
	}

	if _, err := os.Stat(pkg.Dir); err == nil {
		sh := &autotools.Sh{}
		if !cleanVerbose {
			sh.Stdout, sh.Stderr = io.Discard, io.Discard
		}
		if err := autotools.New(l, sh).Clean(pkg.Dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", pkg.Name, err)
		}
	} else {
		l.Info("no source tree to clean", "dir", pkg.Dir)
	}

	if !cleanOutputs {
		return nil
	}
	dirs, err := packageOutputs(cfg.Workspace, pkg)
	if err != nil {
		return err
	}
	for _, d := range dirs {
		l.Debug("removing", "dir", d)
		if err := os.RemoveAll(d); err != nil {
			return err
		}
	}
	return nil
}

// packageOutputs lists the library dirs of pkg: every dir under the
// package dir except the default source tree and any dir holding pkg.Dir.
func packageOutputs(workspace string, pkg *formula.Package) ([]string, error) {
	src, err := build.SourceDir(workspace, pkg.Name)
	if err != nil {
		return nil, err
	}
	root := filepath.Dir(src)
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if !e.IsDir() || dir == src || within(pkg.Dir, dir) {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	if path == "" {
		return false
	}
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
