// Package archenv assembles the compiler environment for building a
// configure/make project for a single target architecture.
package archenv

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/mod/semver"

	"github.com/goplus/xarch/pkgs/buildsys"
	"github.com/goplus/xarch/pkgs/toolchain"
)

// MinOSVersion is the minimum OS version every architecture is built for.
const MinOSVersion = "12.0"

// Env is the build environment of one architecture. Fields mirror the
// variables configure scripts read; Environ renders them.
type Env struct {
	Arch    string
	Variant buildsys.Variant

	SDKRoot string

	CC     string
	CXX    string
	LD     string
	AS     string
	AR     string
	NM     string
	Ranlib string

	// CFlags feed CFLAGS, CPPFLAGS and CXXFLAGS alike.
	CFlags  []string
	LDFlags []string

	// Path is the tool search path, toolchain bin dir first.
	Path string
	// LibraryPath is empty when no extra library dir was requested.
	LibraryPath string

	// HostTriple is the value handed to configure's --host and --target.
	HostTriple string
}

// Environ returns the variables to export for configure and make.
func (e *Env) Environ() map[string]string {
	cflags := strings.Join(e.CFlags, " ")
	env := map[string]string{
		"SDKROOT":  e.SDKRoot,
		"CC":       e.CC,
		"CXX":      e.CXX,
		"LD":       e.LD,
		"AS":       e.AS,
		"AR":       e.AR,
		"NM":       e.NM,
		"RANLIB":   e.Ranlib,
		"CFLAGS":   cflags,
		"CPPFLAGS": cflags,
		"CXXFLAGS": cflags,
		"LDFLAGS":  strings.Join(e.LDFlags, " "),
		"PATH":     e.Path,
	}
	if e.LibraryPath != "" {
		env["LD_LIBRARY_PATH"] = e.LibraryPath
	}
	if e.HostTriple != "" {
		env["BUILD_HOST_NAME"] = e.HostTriple
	}
	return env
}

// String renders the environment as sorted KEY=value lines.
func (e *Env) String() string {
	env := e.Environ()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// SDKError reports an SDK root that is unusable for a build.
type SDKError struct {
	Variant buildsys.Variant
	Root    string
	Reason  string
}

func (e *SDKError) Error() string {
	return fmt.Sprintf("%s: %s sdk %q: %s", buildsys.ErrConfiguration, e.Variant.SDKName(), e.Root, e.Reason)
}

func (e *SDKError) Is(target error) bool {
	return target == buildsys.ErrConfiguration
}

// Builder produces an Env per architecture.
type Builder struct {
	Toolchain buildsys.Toolchain
	SDKs      buildsys.SDKLocator

	// BasePath is the inherited tool search path. Empty means $PATH.
	BasePath string

	l hclog.Logger
}

// New returns a Builder resolving tools and SDKs through the given collaborators.
func New(l hclog.Logger, tc buildsys.Toolchain, sdks buildsys.SDKLocator) *Builder {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Builder{
		Toolchain: tc,
		SDKs:      sdks,
		l:         l.Named("archenv"),
	}
}

// tools lists the environment slots filled from the toolchain, in lookup order.
var tools = []struct {
	name string
	slot func(*Env) *string
}{
	{"cc", func(e *Env) *string { return &e.CC }},
	{"c++", func(e *Env) *string { return &e.CXX }},
	{"ld", func(e *Env) *string { return &e.LD }},
	{"as", func(e *Env) *string { return &e.AS }},
	{"ar", func(e *Env) *string { return &e.AR }},
	{"nm", func(e *Env) *string { return &e.NM }},
	{"ranlib", func(e *Env) *string { return &e.Ranlib }},
}

// Build returns the environment for arch. headersDir and libsDir are
// optional extra search paths; empty strings leave them out entirely.
// A missing SDK root fails before any tool is resolved.
func (b *Builder) Build(target buildsys.Target, arch, headersDir, libsDir string) (*Env, error) {
	if target != buildsys.IOS {
		return nil, fmt.Errorf("%w: unsupported target %q", buildsys.ErrConfiguration, target)
	}
	if arch == "" {
		return nil, fmt.Errorf("%w: empty architecture", buildsys.ErrConfiguration)
	}
	variant := buildsys.VariantOf(arch)
	sdkRoot, err := b.SDKs.SDKRoot(variant)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(sdkRoot); err != nil {
		return nil, &SDKError{Variant: variant, Root: sdkRoot, Reason: "does not exist"}
	}
	if err := b.checkSDKVersion(variant, sdkRoot); err != nil {
		return nil, err
	}

	env := &Env{
		Arch:       arch,
		Variant:    variant,
		SDKRoot:    sdkRoot,
		CFlags:     CFlags(target, arch, sdkRoot, headersDir),
		LDFlags:    LDFlags(sdkRoot, libsDir),
		HostTriple: HostTriple(arch),
	}
	for _, t := range tools {
		p, err := b.Toolchain.Find(t.name)
		if err != nil {
			return nil, err
		}
		*t.slot(env) = p
	}

	inherited := b.BasePath
	if inherited == "" {
		inherited = os.Getenv("PATH")
	}
	env.Path = filepath.Dir(env.CC)
	if inherited != "" {
		env.Path += string(os.PathListSeparator) + inherited
	}
	env.LibraryPath = libsDir

	b.l.Debug("environment ready", "arch", arch, "variant", variant, "sdk", sdkRoot, "host", env.HostTriple)
	return env, nil
}

// checkSDKVersion rejects an SDK older than MinOSVersion. SDKs without a
// readable settings file are accepted as is.
func (b *Builder) checkSDKVersion(variant buildsys.Variant, root string) error {
	settings, err := toolchain.ReadSDKSettings(root)
	if err != nil {
		b.l.Debug("sdk settings unavailable", "sdk", root, "error", err)
		return nil
	}
	have, want := "v"+settings.Version, "v"+MinOSVersion
	if !semver.IsValid(have) {
		return nil
	}
	if semver.Compare(have, want) < 0 {
		return &SDKError{
			Variant: variant,
			Root:    root,
			Reason:  fmt.Sprintf("version %s is older than minimum %s", settings.Version, MinOSVersion),
		}
	}
	return nil
}

// CFlags returns the compile flags shared by C, C++ and the preprocessor.
func CFlags(target buildsys.Target, arch, sdkRoot, headersDir string) []string {
	flags := []string{
		"-arch " + arch,
		"-pipe",
		"-no-cpp-precomp",
		"-isysroot " + sdkRoot,
		"-miphoneos-version-min=" + MinOSVersion,
	}
	if buildsys.VariantOf(arch) == buildsys.Device {
		flags = append(flags, "-I"+sdkRoot+"/usr/include/")
	}
	if headersDir != "" {
		flags = append(flags, "-I"+headersDir)
	}
	return append(flags, "-DOS_"+strings.ToUpper(string(target))+"=1")
}

// LDFlags returns the link flags for the SDK plus an optional library dir.
func LDFlags(sdkRoot, libsDir string) []string {
	flags := []string{"-L" + sdkRoot + "/usr/lib/"}
	if libsDir != "" {
		flags = append(flags, "-L"+libsDir)
	}
	return flags
}

// HostTriple derives the configure host triple of an architecture:
// "armv7" becomes "arm-apple-darwin7", "x86_64" becomes "x86_64-apple-darwin".
// A device architecture with no suffix after "arm" or "armv" is returned
// unchanged.
func HostTriple(arch string) string {
	if buildsys.VariantOf(arch) != buildsys.Device {
		return arch + "-apple-darwin"
	}
	rest := strings.TrimPrefix(arch, buildsys.DevicePrefix)
	if len(rest) > 1 && rest[0] == 'v' {
		rest = rest[1:]
	}
	if rest == "" {
		return arch
	}
	return "arm-apple-darwin" + rest
}
