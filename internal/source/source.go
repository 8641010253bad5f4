// Package source materializes a formula's source tree on disk.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"

	"github.com/goplus/xarch/formula"
)

// Fetcher downloads or clones sources.
type Fetcher struct {
	Client *http.Client
	// Progress receives git clone progress; nil discards it.
	Progress io.Writer

	l hclog.Logger
}

// New creates a Fetcher using http.DefaultClient.
func New(l hclog.Logger) *Fetcher {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Fetcher{
		Client: http.DefaultClient,
		l:      l.Named("source"),
	}
}

// Present reports whether dest already holds a source tree.
func Present(dest string) bool {
	entries, err := os.ReadDir(dest)
	return err == nil && len(entries) > 0
}

// Fetch populates dest from src. An existing, non-empty dest is kept as is.
// The tree is assembled next to dest and moved into place once complete.
func (f *Fetcher) Fetch(ctx context.Context, src formula.Source, dest string) error {
	if Present(dest) {
		f.l.Debug("source already present", "dir", dest)
		return nil
	}
	if src.IsZero() {
		return fmt.Errorf("no source declared and %s is empty", dest)
	}

	tmp := dest + ".partial"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	var err error
	if src.Git != "" {
		err = f.clone(ctx, src, tmp)
	} else {
		err = f.download(ctx, src, tmp)
	}
	if err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

// clone makes a shallow clone of src.Ref, trying it as a tag first and as a
// branch second. An empty ref clones the default branch.
func (f *Fetcher) clone(ctx context.Context, src formula.Source, dest string) error {
	refs := []plumbing.ReferenceName{""}
	if src.Ref != "" {
		refs = []plumbing.ReferenceName{
			plumbing.NewTagReferenceName(src.Ref),
			plumbing.NewBranchReferenceName(src.Ref),
		}
	}
	var err error
	for _, ref := range refs {
		f.l.Debug("cloning repository", "url", src.Git, "ref", ref)
		_, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:           src.Git,
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         1,
			Progress:      f.Progress,
		})
		if err == nil {
			return nil
		}
		f.l.Trace("clone attempt failed", "ref", ref, "error", err)
		os.RemoveAll(dest)
	}
	return fmt.Errorf("cloning %s: %w", src.Git, err)
}

func (f *Fetcher) download(ctx context.Context, src formula.Source, dest string) error {
	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("parsing source url: %w", err)
	}
	name := path.Base(u.Path)

	var body io.ReadCloser
	switch u.Scheme {
	case "file":
		body, err = os.Open(u.Path)
		if err != nil {
			return err
		}
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
		if err != nil {
			return err
		}
		f.l.Debug("downloading source", "url", src.URL)
		resp, err := f.Client.Do(req)
		if err != nil {
			return fmt.Errorf("downloading %s: %w", src.URL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("downloading %s: %s", src.URL, resp.Status)
		}
		body = resp.Body
	default:
		return errors.New("unsupported source url scheme: " + u.Scheme)
	}
	defer body.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return Extract(body, name, dest, src.Strip)
}
