// Package attachments lists the finished PDFs that can be appended to a
// generated package as-is.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// ErrNotFound indicates the attachment does not exist.
	ErrNotFound = errors.New("attachment not found")

	// ErrInvalidName indicates a name that is not a plain .pdf file name.
	ErrInvalidName = errors.New("invalid attachment name")
)

// Entry describes one attachment file.
type Entry struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Catalog serves attachments from a single directory.
type Catalog struct {
	Dir string
}

// List returns every attachment sorted by name. A missing directory is empty.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.Dir); errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	fsys := os.DirFS(c.Dir)
	matches, err := doublestar.Glob(fsys, "*.{pdf,PDF}")
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	sort.Strings(matches)

	out := make([]Entry, 0, len(matches))
	for _, name := range matches {
		info, err := fs.Stat(fsys, name)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, Entry{Name: name, SizeBytes: info.Size(), ModifiedAt: info.ModTime().UTC()})
	}
	return out, nil
}

// Path returns the absolute location of the named attachment.
func (c *Catalog) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	path := filepath.Join(c.Dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// ValidateName rejects names that could escape the catalog directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "",
		name != filepath.Base(name),
		strings.ContainsAny(name, `/\`),
		strings.HasPrefix(name, "."),
		!strings.EqualFold(filepath.Ext(name), ".pdf"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
