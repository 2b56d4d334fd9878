// Package documents locates input PDFs under a sandboxed root directory.
package documents

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

var (
	// ErrInvalidPath is returned for absolute paths, paths escaping the root,
	// and files that are not PDFs.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrNotExist is returned when the resolved path is missing or is a directory.
	ErrNotExist = errors.New("document does not exist")
)

// Resolver maps request-supplied relative paths onto files under root.
type Resolver struct {
	root        string
	defaultPath string
}

// NewResolver makes root absolute. defaultPath is used when a request names
// no document; it is operator configuration and may be absolute.
func NewResolver(root, defaultPath string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve document root: %w", err)
	}
	return &Resolver{root: abs, defaultPath: defaultPath}, nil
}

// Root returns the absolute document root.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the absolute path for rel, checking that it exists.
// An empty rel selects the default document. Request paths are checked
// through an os.Root, so symlinks may not lead outside the root.
func (r *Resolver) Resolve(rel string) (string, error) {
	if rel == "" {
		return r.resolveDefault()
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	if !constants.IsAllowedExt(filepath.Ext(rel)) {
		return "", fmt.Errorf("%w: %q is not a pdf", ErrInvalidPath, filepath.Base(rel))
	}

	root, err := os.OpenRoot(r.root)
	if err != nil {
		return "", fmt.Errorf("%w: document root: %w", ErrNotExist, err)
	}
	defer func() { _ = root.Close() }()

	info, err := root.Stat(rel)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", ErrNotExist, rel)
	case err != nil:
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, rel, err)
	case info.IsDir():
		return "", fmt.Errorf("%w: %s is a directory", ErrNotExist, rel)
	}
	return filepath.Join(r.root, rel), nil
}

// resolveDefault checks the operator-configured default document. It is
// trusted configuration and is not confined to the root.
func (r *Resolver) resolveDefault() (string, error) {
	full := r.defaultPath
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, full)
	}
	full = filepath.Clean(full)
	if !constants.IsAllowedExt(filepath.Ext(full)) {
		return "", fmt.Errorf("%w: %q is not a pdf", ErrInvalidPath, filepath.Base(full))
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotExist, full)
	}
	return full, nil
}

// CheckRoot reports whether the document root is a readable directory.
func (r *Resolver) CheckRoot() error {
	info, err := os.Stat(r.root)
	if err != nil {
		return fmt.Errorf("document root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("document root %s is not a directory", r.root)
	}
	return nil
}
