package autotools

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/buildsys/archenv"
)

type execCall struct {
	dir     string
	command string
	env     map[string]string
}

// recordingShell records commands and fails those matching failOn.
type recordingShell struct {
	calls  []execCall
	failOn string
	err    error
}

func (r *recordingShell) Exec(dir, command string, env map[string]string) error {
	r.calls = append(r.calls, execCall{dir: dir, command: command, env: env})
	if r.failOn != "" && strings.Contains(command, r.failOn) {
		return r.err
	}
	return nil
}

// exitError returns a genuine *exec.ExitError.
func exitError(t *testing.T) error {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	err := exec.Command("sh", "-c", "exit 2").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	return err
}

func testEnv(triple string) *archenv.Env {
	return &archenv.Env{
		Arch:       "arm64",
		SDKRoot:    "/sdk",
		CC:         "/tc/cc",
		CFlags:     []string{"-arch arm64"},
		Path:       os.Getenv("PATH"),
		HostTriple: triple,
	}
}

func TestConfigureArgs(t *testing.T) {
	options := make([]string, 2, 8)
	options[0], options[1] = "--enable-foo", "--disable-shared"
	backing := options[:cap(options)]

	got := ConfigureArgs(testEnv("arm-apple-darwin64"), options)
	want := []string{"--host=arm-apple-darwin64 --target=arm-apple-darwin64", "--enable-foo", "--disable-shared"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("ConfigureArgs = %q, want %q", got, want)
	}
	if len(options) != 2 || options[0] != "--enable-foo" || options[1] != "--disable-shared" {
		t.Errorf("caller options mutated: %q", options)
	}
	for _, s := range backing[2:] {
		if s != "" {
			t.Errorf("caller backing array written: %q", backing)
		}
	}

	hosts := 0
	for _, a := range got {
		if strings.HasPrefix(a, "--host=") {
			hosts++
		}
	}
	if hosts != 1 {
		t.Errorf("%d host entries, want 1", hosts)
	}

	plain := ConfigureArgs(testEnv(""), options)
	if strings.Join(plain, "|") != "--enable-foo|--disable-shared" {
		t.Errorf("ConfigureArgs without triple = %q", plain)
	}
	plain[0] = "changed"
	if options[0] != "--enable-foo" {
		t.Error("result aliases caller options")
	}
}

func TestConfigureCommand(t *testing.T) {
	if got, want := ConfigureCommand([]string{"--a", "--b"}), "./configure --a --b && make -j4 2>&1"; got != want {
		t.Errorf("ConfigureCommand = %q, want %q", got, want)
	}
	if got, want := ConfigureCommand(nil), "./configure && make -j4 2>&1"; got != want {
		t.Errorf("ConfigureCommand(nil) = %q, want %q", got, want)
	}
}

func TestRun(t *testing.T) {
	t.Run("with bootstrap", func(t *testing.T) {
		sh := &recordingShell{}
		a := New(nil, sh)
		options := []string{"--enable-foo"}
		if err := a.Run("/src/foo", testEnv("arm-apple-darwin64"), options, true); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(sh.calls) != 2 {
			t.Fatalf("got %d commands, want 2", len(sh.calls))
		}
		if sh.calls[0].command != "bash autogen.sh 2>&1" {
			t.Errorf("first command = %q", sh.calls[0].command)
		}
		want := "./configure --host=arm-apple-darwin64 --target=arm-apple-darwin64 --enable-foo && make -j4 2>&1"
		if sh.calls[1].command != want {
			t.Errorf("configure command = %q, want %q", sh.calls[1].command, want)
		}
		for _, c := range sh.calls {
			if c.dir != "/src/foo" {
				t.Errorf("command ran in %q", c.dir)
			}
			if c.env["CC"] != "/tc/cc" || c.env["BUILD_HOST_NAME"] != "arm-apple-darwin64" {
				t.Errorf("env = %v", c.env)
			}
		}
		if len(options) != 1 || options[0] != "--enable-foo" {
			t.Errorf("options mutated: %q", options)
		}
	})

	t.Run("without bootstrap", func(t *testing.T) {
		sh := &recordingShell{}
		if err := New(nil, sh).Run("/src/foo", testEnv("x86_64-apple-darwin"), nil, false); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(sh.calls) != 1 || !strings.HasPrefix(sh.calls[0].command, "./configure --host=x86_64-apple-darwin") {
			t.Fatalf("calls = %+v", sh.calls)
		}
	})

	t.Run("bootstrap fails", func(t *testing.T) {
		sh := &recordingShell{failOn: "autogen", err: errors.New("exit status 1")}
		err := New(nil, sh).Run("/src/foo", testEnv(""), nil, true)
		if !errors.Is(err, buildsys.ErrBootstrap) {
			t.Fatalf("err = %v, want ErrBootstrap", err)
		}
		if len(sh.calls) != 1 {
			t.Errorf("configure ran after failed bootstrap: %+v", sh.calls)
		}
	})

	t.Run("configure fails", func(t *testing.T) {
		sh := &recordingShell{failOn: "configure", err: errors.New("exit status 77")}
		err := New(nil, sh).Run("/src/foo", testEnv(""), nil, false)
		if !errors.Is(err, buildsys.ErrBuild) {
			t.Fatalf("err = %v, want ErrBuild", err)
		}
		if !strings.Contains(err.Error(), "exit status 77") {
			t.Errorf("err = %v, want underlying status", err)
		}
	})
}

func TestCleanAbsorbsMakeFailure(t *testing.T) {
	sh := &recordingShell{failOn: "make", err: exitError(t)}
	if err := New(nil, sh).Clean("/src/foo"); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(sh.calls) != 2 {
		t.Fatalf("got %d commands, want 2", len(sh.calls))
	}
	for i, target := range []string{"clean", "distclean"} {
		want := "make " + target + ` || echo "Nothing to ` + target + `"`
		if sh.calls[i].command != want {
			t.Errorf("command %d = %q, want %q", i, sh.calls[i].command, want)
		}
	}
}

func TestCleanReportsShellFailure(t *testing.T) {
	sh := &recordingShell{failOn: "make", err: errors.New("fork/exec /bin/sh: no such file or directory")}
	if err := New(nil, sh).Clean("/src/foo"); err == nil {
		t.Fatal("expected error when the shell cannot start")
	}
}

func requireTools(t *testing.T, tools ...string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	for _, bin := range tools {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

func TestCleanE2E(t *testing.T) {
	requireTools(t, "make")

	t.Run("never built", func(t *testing.T) {
		a := New(nil, &Sh{Stdout: os.Stderr})
		dir := t.TempDir()
		for i := 0; i < 2; i++ {
			if err := a.Clean(dir); err != nil {
				t.Fatalf("Clean #%d: %v", i, err)
			}
		}
	})

	t.Run("previously built", func(t *testing.T) {
		dir := t.TempDir()
		makefile := "clean:\n\trm -f built.o\ndistclean: clean\n\trm -f Makefile\n"
		if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(makefile), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "built.o"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		a := New(nil, &Sh{Stdout: os.Stderr})
		if err := a.Clean(dir); err != nil {
			t.Fatalf("Clean: %v", err)
		}
		for _, f := range []string{"built.o", "Makefile"} {
			if _, err := os.Stat(filepath.Join(dir, f)); !os.IsNotExist(err) {
				t.Errorf("%s still present", f)
			}
		}
	})
}

const fakeConfigure = `#!/bin/sh
echo "ARGS=$*" > config.log
echo "CFLAGS=$CFLAGS" >> config.log
printf 'all:\n\ttouch libfoo.a\n' > Makefile
`

func TestRunE2E(t *testing.T) {
	requireTools(t, "make", "bash")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "configure"), []byte(fakeConfigure), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "autogen.sh"), []byte("touch bootstrapped\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	a := New(nil, &Sh{Stdout: os.Stderr})
	if err := a.Run(dir, testEnv("arm-apple-darwin64"), []string{"--enable-foo"}, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, f := range []string{"bootstrapped", "libfoo.a"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("missing %s: %v", f, err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.log"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"ARGS=--host=arm-apple-darwin64 --target=arm-apple-darwin64 --enable-foo",
		"CFLAGS=-arch arm64",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config.log missing %q:\n%s", want, data)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "configure"), []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := a.Run(dir, testEnv(""), nil, false); !errors.Is(err, buildsys.ErrBuild) {
		t.Fatalf("err = %v, want ErrBuild", err)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2", "C=3"}, map[string]string{"B": "X", "D": "4"})
	if want := "A=1 B=X C=3 D=4"; strings.Join(got, " ") != want {
		t.Errorf("mergeEnv = %q, want %q", got, want)
	}
}
