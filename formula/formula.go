// Package formula describes how a native library package is fetched and
// built. Formulas are YAML files named <package>.yaml.
package formula

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ext is the file extension of formula files.
const Ext = ".yaml"

// ErrNotFound is returned by Find when no search dir holds the formula.
var ErrNotFound = errors.New("formula not found")

// Source tells where the unpacked source tree comes from. Exactly one of
// Git and URL is set.
type Source struct {
	Git string `yaml:"git,omitempty"`
	// Ref is a tag or branch name for Git sources.
	Ref string `yaml:"ref,omitempty"`

	URL string `yaml:"url,omitempty"`
	// Strip is a leading directory removed from archive entries.
	Strip string `yaml:"strip,omitempty"`
}

// IsZero reports whether no source is declared.
func (s Source) IsZero() bool {
	return s.Git == "" && s.URL == ""
}

// Package is the build description of one library package. It is shared by
// every architecture build of the package and must be treated as read-only.
type Package struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`

	Source Source `yaml:"source,omitempty"`

	// Dir is the unpacked source tree. Relative paths in the file are
	// resolved against the formula's directory.
	Dir string `yaml:"dir,omitempty"`

	ConfigureOptions []string `yaml:"configure_options,omitempty"`
	// Bootstrap runs autogen.sh before configure.
	Bootstrap bool `yaml:"bootstrap,omitempty"`

	ExtraHeadersDir string `yaml:"extra_headers_dir,omitempty"`
	// ExtraLibs is a library search dir template; {target} and {arch} are
	// replaced per build.
	ExtraLibs string `yaml:"extra_libs_dir,omitempty"`

	// Libraries are the static libraries the build produces, relative to Dir.
	Libraries []string `yaml:"libraries"`
	// MergedLibrary, when set, combines Libraries into one archive of that
	// name instead of copying them.
	MergedLibrary string `yaml:"merged_library,omitempty"`
}

// Options returns a copy of the configure options.
func (p *Package) Options() []string {
	return slices.Clone(p.ConfigureOptions)
}

// ExtraLibsDir returns the extra library dir for one build, or "" when the
// package declares none.
func (p *Package) ExtraLibsDir(target, arch string) string {
	if p.ExtraLibs == "" {
		return ""
	}
	dir := strings.NewReplacer("{target}", target, "{arch}", arch).Replace(p.ExtraLibs)
	if !filepath.IsAbs(dir) && p.Dir != "" {
		dir = filepath.Join(p.Dir, dir)
	}
	return dir
}

// HeadersDir returns the extra header dir, resolved against Dir.
func (p *Package) HeadersDir() string {
	if p.ExtraHeadersDir == "" || filepath.IsAbs(p.ExtraHeadersDir) || p.Dir == "" {
		return p.ExtraHeadersDir
	}
	return filepath.Join(p.Dir, p.ExtraHeadersDir)
}

// LibraryPaths returns Libraries resolved against Dir.
func (p *Package) LibraryPaths() []string {
	paths := make([]string, len(p.Libraries))
	for i, lib := range p.Libraries {
		if filepath.IsAbs(lib) {
			paths[i] = lib
		} else {
			paths[i] = filepath.Join(p.Dir, lib)
		}
	}
	return paths
}

// Validate checks the fields a build cannot do without.
func (p *Package) Validate() error {
	if p.Name == "" {
		return errors.New("formula: missing name")
	}
	if len(p.Libraries) == 0 {
		return fmt.Errorf("formula %s: no libraries declared", p.Name)
	}
	if p.Source.Git != "" && p.Source.URL != "" {
		return fmt.Errorf("formula %s: source has both git and url", p.Name)
	}
	if p.MergedLibrary != "" && filepath.Base(p.MergedLibrary) != p.MergedLibrary {
		return fmt.Errorf("formula %s: merged library %q must be a file name", p.Name, p.MergedLibrary)
	}
	return nil
}

// Parse decodes a formula. Relative dirs are resolved against baseDir.
func Parse(data []byte, baseDir string) (*Package, error) {
	var p Package
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing formula: %w", err)
	}
	if p.Dir != "" && !filepath.IsAbs(p.Dir) {
		p.Dir = filepath.Join(baseDir, p.Dir)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads the formula file at path.
func Load(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading formula: %w", err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return Parse(data, abs)
}

// Find loads <name>.yaml from the first dir that has it. A name that is
// itself a path to a formula file is loaded directly.
func Find(dirs []string, name string) (*Package, error) {
	if strings.HasSuffix(name, Ext) {
		if _, err := os.Stat(name); err == nil {
			return Load(name)
		}
	}
	for _, dir := range dirs {
		path := filepath.Join(dir, name+Ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, fmt.Errorf("%w: %s (searched %s)", ErrNotFound, name, strings.Join(dirs, ", "))
}
