package source

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// decompress wraps r according to the archive file name.
func decompress(r io.Reader, name string) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		zs, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zs, zs.Close, nil
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		x, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return x, func() {}, nil
	case strings.HasSuffix(name, ".tar"):
		return r, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported archive format: %s", name)
}

// Extract unpacks the tar archive read from r into dest. name selects the
// compression by its extension. Entries under strip have that prefix removed;
// entries outside it are skipped.
func Extract(r io.Reader, name, dest, strip string) error {
	dr, closeFn, err := decompress(r, name)
	if err != nil {
		return err
	}
	defer closeFn()

	strip = strings.Trim(strip, "/")
	tr := tar.NewReader(dr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		rel := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if strip != "" {
			if rel == strip {
				continue
			}
			if !strings.HasPrefix(rel, strip+"/") {
				continue
			}
			rel = strings.TrimPrefix(rel, strip+"/")
		}
		if rel == "." || rel == "" {
			continue
		}
		if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
			return fmt.Errorf("archive entry %q escapes destination", header.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))
		crosses, err := crossesSymlink(dest, rel)
		if err != nil {
			return err
		}
		if crosses {
			return fmt.Errorf("archive entry %q passes through a symlink", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := removeSymlink(target); err != nil {
				return err
			}
			if err := writeFile(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			link := filepath.Clean(filepath.FromSlash(header.Linkname))
			if filepath.IsAbs(link) {
				return fmt.Errorf("archive symlink %q points outside destination", header.Name)
			}
			resolved := filepath.Join(filepath.Dir(target), link)
			if rl, err := filepath.Rel(dest, resolved); err != nil || rl == ".." || strings.HasPrefix(rl, ".."+string(filepath.Separator)) {
				return fmt.Errorf("archive symlink %q points outside destination", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := removeSymlink(target); err != nil {
				return err
			}
			// After Clean, ".." only appears as leading elements.
			if err := os.Symlink(link, target); err != nil {
				return err
			}
		}
	}
}

// crossesSymlink reports whether an existing parent of rel under dest is a
// symlink. Entries below a symlink would be written wherever it points.
func crossesSymlink(dest, rel string) (bool, error) {
	dir := dest
	parent := path.Dir(rel)
	if parent == "." {
		return false, nil
	}
	for _, elem := range strings.Split(parent, "/") {
		dir = filepath.Join(dir, elem)
		info, err := os.Lstat(dir)
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return true, nil
		}
	}
	return false, nil
}

// removeSymlink deletes target when it is a symlink so the next write
// replaces the link instead of following it.
func removeSymlink(target string) error {
	info, err := os.Lstat(target)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(target)
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
