package internal

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/goplus/xarch/formula"
	"github.com/goplus/xarch/internal/build"
	"github.com/goplus/xarch/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "xarch",
	Short: "xarch cross-compiles autotools libraries for iOS",
	Long: `xarch builds autoconf/make C libraries once per iOS architecture
and combines the results into fat static libraries.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is $XDG_CONFIG_HOME/xarch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration and creates the root logger. verbose raises
// the level to debug unless --log-level names one.
func setup(verbose bool) (*config.Config, hclog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if logLevel != "" {
		level = logLevel
	}
	l := hclog.New(&hclog.LoggerOptions{
		Name:   "xarch",
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
	return cfg, l, nil
}

// loadPackage finds the named formula. A formula without a dir builds in
// the package's source dir under the workspace.
func loadPackage(cfg *config.Config, name string) (*formula.Package, error) {
	pkg, err := formula.Find(cfg.Formulas, name)
	if err != nil {
		return nil, err
	}
	if pkg.Dir == "" {
		dir, err := build.SourceDir(cfg.Workspace, pkg.Name)
		if err != nil {
			return nil, err
		}
		pkg.Dir = dir
	}
	return pkg, nil
}

// archsOrDefault returns the requested architectures, falling back to the
// configured ones.
func archsOrDefault(cfg *config.Config, archs []string) ([]string, error) {
	if len(archs) == 0 {
		archs = cfg.Archs
	}
	var out []string
	seen := make(map[string]bool)
	for _, a := range archs {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no architectures requested")
	}
	return out, nil
}
