package formula

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const tesseract = `
name: tesseract
version: 3.02.02
source:
  url: https://example.com/tesseract-3.02.02.tar.gz
  strip: tesseract-3.02.02
dir: src/tesseract
configure_options:
  - --enable-static
  - --disable-shared
bootstrap: true
extra_headers_dir: /deps/include
extra_libs_dir: ../deps/{target}-{arch}/lib
libraries:
  - api/.libs/libtesseract_api.a
  - ccmain/.libs/libtesseract_main.a
merged_library: libtesseract_all.a
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(tesseract), "/formulas")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name != "tesseract" || p.Version != "3.02.02" || !p.Bootstrap {
		t.Errorf("package = %+v", p)
	}
	if p.Dir != "/formulas/src/tesseract" {
		t.Errorf("Dir = %q", p.Dir)
	}
	if p.Source.URL == "" || p.Source.Strip != "tesseract-3.02.02" || p.Source.IsZero() {
		t.Errorf("Source = %+v", p.Source)
	}
	if got := p.ExtraLibsDir("ios", "armv7"); got != "/formulas/src/deps/ios-armv7/lib" {
		t.Errorf("ExtraLibsDir = %q", got)
	}
	if got := p.HeadersDir(); got != "/deps/include" {
		t.Errorf("HeadersDir = %q", got)
	}
	want := []string{
		"/formulas/src/tesseract/api/.libs/libtesseract_api.a",
		"/formulas/src/tesseract/ccmain/.libs/libtesseract_main.a",
	}
	if got := p.LibraryPaths(); !reflect.DeepEqual(got, want) {
		t.Errorf("LibraryPaths = %q, want %q", got, want)
	}
}

func TestOptionsIsCopy(t *testing.T) {
	p := &Package{ConfigureOptions: []string{"--a"}}
	opts := p.Options()
	opts[0] = "--b"
	if p.ConfigureOptions[0] != "--a" {
		t.Error("Options aliases the package slice")
	}
}

func TestExtraLibsDirEmpty(t *testing.T) {
	p := &Package{Dir: "/src"}
	if got := p.ExtraLibsDir("ios", "arm64"); got != "" {
		t.Errorf("ExtraLibsDir = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		pkg  Package
		ok   bool
	}{
		{"ok", Package{Name: "foo", Libraries: []string{"libfoo.a"}}, true},
		{"no name", Package{Libraries: []string{"libfoo.a"}}, false},
		{"no libraries", Package{Name: "foo"}, false},
		{"two sources", Package{Name: "foo", Libraries: []string{"a"}, Source: Source{Git: "g", URL: "u"}}, false},
		{"merged path", Package{Name: "foo", Libraries: []string{"a"}, MergedLibrary: "lib/x.a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pkg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestFind(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(second, "tesseract.yaml"), []byte(tesseract), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Find([]string{first, second}, "tesseract")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.Dir != filepath.Join(second, "src", "tesseract") {
		t.Errorf("Dir = %q", p.Dir)
	}

	direct, err := Find(nil, filepath.Join(second, "tesseract.yaml"))
	if err != nil || direct.Name != "tesseract" {
		t.Fatalf("Find by path = %v, %v", direct, err)
	}

	if _, err := Find([]string{first}, "leptonica"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("name: [oops"), "/"); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("name: foo\n"), "/"); err == nil {
		t.Error("expected validation error")
	}
}
