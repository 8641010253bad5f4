package internal

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/goplus/xarch/formula"
	"github.com/goplus/xarch/internal/build"
	"github.com/goplus/xarch/internal/config"
	"github.com/goplus/xarch/internal/lockedfile"
	"github.com/goplus/xarch/internal/source"
	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/buildsys/archenv"
	"github.com/goplus/xarch/pkgs/buildsys/autotools"
	"github.com/goplus/xarch/pkgs/libmerge"
	"github.com/goplus/xarch/pkgs/toolchain"
)

var (
	buildArchs   []string
	buildTarget  string
	buildForce   bool
	buildVerbose bool
	buildOutput  string
)

var buildCmd = &cobra.Command{
	Use:   "build <formula>",
	Short: "Build a package for every requested architecture",
	Long: `Build fetches the package sources when needed, builds each architecture
in turn into <workspace>/<package>/thin/<target>-<arch> and combines the
results into fat libraries under <workspace>/<package>/<target>.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringSliceVar(&buildArchs, "arch", nil, "Architectures to build (default from config: armv7,arm64,x86_64)")
	buildCmd.Flags().StringVar(&buildTarget, "target", string(buildsys.IOS), "Target platform")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Rebuild even if outputs exist")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Enable verbose build output")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Copy fat libraries to a directory or .zip file")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, l, err := setup(buildVerbose)
	if err != nil {
		return err
	}
	pkg, err := loadPackage(cfg, args[0])
	if err != nil {
		return err
	}
	archs, err := archsOrDefault(cfg, buildArchs)
	if err != nil {
		return err
	}
	target := buildsys.Target(buildTarget)

	// Resolve output path before the build changes anything on disk.
	if buildOutput != "" {
		abs, err := filepath.Abs(buildOutput)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		buildOutput = abs
	}

	stdout, stderr := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if !buildVerbose {
		stdout, stderr = io.Discard, io.Discard
	}
	tc := toolchain.NewXcrun(cfg.DeveloperDir)
	merger := libmerge.New(l, tc)
	merger.Stdout, merger.Stderr = stdout, stderr

	builder, err := newBuilder(cfg, l, tc, merger, stdout, stderr)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	pkgDir, err := builder.PackageDir(pkg.Name)
	if err != nil {
		return err
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(pkgDir, ".lock")).Lock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", pkg.Name, err)
	}
	defer unlock()

	if err := source.New(l).Fetch(cmd.Context(), pkg.Source, pkg.Dir); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", pkg.Name, err)
	}

	fatDir, outputs, err := buildAll(cmd.Context(), builder, merger, pkg, target, archs)
	if err != nil {
		return err
	}
	for _, out := range outputs {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}

	if buildOutput != "" {
		if err := exportLibs(fatDir, buildOutput); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newBuilder(cfg *config.Config, l hclog.Logger, tc *toolchain.Xcrun, merger buildsys.Merger, stdout, stderr io.Writer) (*build.Builder, error) {
	at := autotools.New(l, &autotools.Sh{Stdout: stdout, Stderr: stderr})
	return build.NewBuilder(build.Options{
		WorkspaceDir: cfg.Workspace,
		Sanitizer:    at,
		Runner:       at,
		Env:          archenv.New(l, tc, tc),
		Merger:       merger,
		Logger:       l,
	})
}

// fatMerger combines per-architecture dirs into fat libraries.
type fatMerger interface {
	FatDir(outDir string, thinDirs []string) ([]string, error)
}

// buildAll builds archs one after another, then combines their thin dirs
// into the target's fat dir.
func buildAll(ctx context.Context, b *build.Builder, fm fatMerger, pkg *formula.Package, target buildsys.Target, archs []string) (string, []string, error) {
	thinDirs := make([]string, 0, len(archs))
	for _, arch := range archs {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		thin, err := b.BuildArch(build.Request{
			Target:  target,
			Arch:    arch,
			Package: pkg,
			Force:   buildForce,
		})
		if err != nil {
			return "", nil, err
		}
		thinDirs = append(thinDirs, thin)
	}

	fatDir, err := b.FatDir(pkg.Name, target)
	if err != nil {
		return "", nil, err
	}
	if err := os.RemoveAll(fatDir); err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(fatDir, 0o755); err != nil {
		return "", nil, err
	}
	outputs, err := fm.FatDir(fatDir, thinDirs)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create fat libraries for %s: %w", pkg.Name, err)
	}
	return fatDir, outputs, nil
}

// exportLibs copies the fat libraries in fatDir to dest. A dest ending in
// ".zip" is written as a zip archive; anything else is a new directory.
func exportLibs(fatDir, dest string) error {
	if filepath.Ext(dest) == ".zip" {
		return zipLibs(fatDir, dest)
	}
	return os.CopyFS(dest, os.DirFS(fatDir))
}

// zipLibs writes every file under dir into a deflated zip at dest. A partly
// written archive is removed.
func zipLibs(dir, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	zw := zip.NewWriter(f)
	if err := zw.AddFS(os.DirFS(dir)); err != nil {
		zw.Close()
		return fmt.Errorf("zipping %s: %w", dir, err)
	}
	return zw.Close()
}
