// Package autotools drives configure/make builds of a source tree for one
// architecture at a time.
package autotools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/buildsys/archenv"
)

// MakeJobs is the parallelism handed to make.
const MakeJobs = 4

// BootstrapScript generates configure for projects that ship without one.
const BootstrapScript = "autogen.sh"

// Sh runs command lines through /bin/sh.
type Sh struct {
	Stdout io.Writer
	Stderr io.Writer
}

var _ buildsys.Shell = (*Sh)(nil)

// Exec runs command in dir with env layered over the process environment.
func (s *Sh) Exec(dir, command string, env map[string]string) error {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if len(env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), env)
	}
	return cmd.Run()
}

// AutoTools cleans, bootstraps, configures and compiles a source tree.
// Every step receives the tree explicitly; the process working directory
// is never changed.
type AutoTools struct {
	sh buildsys.Shell
	l  hclog.Logger
}

// New returns an AutoTools running commands through sh.
func New(l hclog.Logger, sh buildsys.Shell) *AutoTools {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	if sh == nil {
		sh = &Sh{}
	}
	return &AutoTools{sh: sh, l: l.Named("autotools")}
}

// Clean resets dir by running "make clean" and "make distclean". A tree
// that was never built has nothing to clean, so a failing make is not an
// error. Only a shell that cannot run at all is reported.
func (a *AutoTools) Clean(dir string) error {
	for _, target := range []string{"clean", "distclean"} {
		cmd := fmt.Sprintf("make %s || echo \"Nothing to %s\"", target, target)
		if err := a.sh.Exec(dir, cmd, nil); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				a.l.Debug("nothing to clean", "dir", dir, "target", target, "status", exitErr.ExitCode())
				continue
			}
			return fmt.Errorf("clean %s: %w", dir, err)
		}
	}
	return nil
}

// Run builds the tree in dir under env. When bootstrap is set the
// bootstrap script runs first; configure then make follow.
func (a *AutoTools) Run(dir string, env *archenv.Env, options []string, bootstrap bool) error {
	vars := env.Environ()
	if bootstrap {
		a.l.Info("bootstrapping", "dir", dir, "arch", env.Arch)
		if err := a.sh.Exec(dir, "bash "+BootstrapScript+" 2>&1", vars); err != nil {
			return fmt.Errorf("%w: %s: %w", buildsys.ErrBootstrap, BootstrapScript, err)
		}
	}

	args := ConfigureArgs(env, options)
	a.l.Info("configuring", "dir", dir, "arch", env.Arch, "args", strings.Join(args, " "))
	if err := a.sh.Exec(dir, ConfigureCommand(args), vars); err != nil {
		return fmt.Errorf("%w: configure/make: %w", buildsys.ErrBuild, err)
	}
	return nil
}

// ConfigureArgs returns the configure arguments for env. Cross builds get a
// leading "--host=<triple> --target=<triple>" entry. options is never modified.
func ConfigureArgs(env *archenv.Env, options []string) []string {
	if env.HostTriple == "" {
		return slices.Clone(options)
	}
	host := "--host=" + env.HostTriple + " --target=" + env.HostTriple
	args := make([]string, 0, len(options)+1)
	args = append(args, host)
	return append(args, options...)
}

// ConfigureCommand joins configure and make into one shell line; make only
// runs when configure succeeded.
func ConfigureCommand(args []string) string {
	configure := "./configure"
	if len(args) > 0 {
		configure += " " + strings.Join(args, " ")
	}
	return configure + " && make -j" + strconv.Itoa(MakeJobs) + " 2>&1"
}

// mergeEnv returns base with every key in override replaced or added,
// sorted by key.
func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
