// Package cache is the content-addressed local PDF cache. Files are stored
// under their SHA-256 checksum, so a path, once written, is never rewritten
// with different bytes. Annotation sidecar copies live next to the PDFs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	pdfDir     = "pdfs"
	sidecarDir = "annotations"
	tmpDir     = "tmp"
)

// Cache is a directory tree rooted at Root:
//
//	<root>/pdfs/<ab>/<checksum>.pdf
//	<root>/annotations/<attachmentID>.json
type Cache struct {
	root string
}

// Stats summarizes the cached PDFs.
type Stats struct {
	Files      int
	TotalBytes int64
}

// New creates the cache layout under root.
func New(root string) (*Cache, error) {
	for _, dir := range []string{pdfDir, sidecarDir, tmpDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}
	return &Cache{root: root}, nil
}

func (c *Cache) Root() string { return c.root }

// PathFor maps a checksum to its cache path. It is deterministic and does
// not touch the filesystem.
func (c *Cache) PathFor(checksum string) string {
	checksum = strings.ToLower(checksum)
	shard := "_"
	if len(checksum) >= 2 {
		shard = checksum[:2]
	}
	return filepath.Join(c.root, pdfDir, shard, checksum+".pdf")
}

// Lookup returns the cache path when the file exists.
func (c *Cache) Lookup(checksum string) (string, bool) {
	p := c.PathFor(checksum)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Verify reports whether the file at path hashes to expected.
// A missing file verifies as false.
func (c *Cache) Verify(path, expected string) bool {
	sum, err := Checksum(path)
	if err != nil {
		return false
	}
	return strings.EqualFold(sum, expected)
}

// Store copies src into the cache under checksum and returns the cache path.
// When the path already exists it is returned unchanged; the first writer wins.
func (c *Cache) Store(checksum, src string) (string, error) {
	dest := c.PathFor(checksum)
	if _, ok := c.Lookup(checksum); ok {
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache shard: %w", err)
	}

	tmp, err := c.copyToTemp(src)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	// Link fails on an existing target, which keeps the first writer's file.
	if err := os.Link(tmp, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return dest, nil
		}
		if err := os.Rename(tmp, dest); err != nil {
			return "", fmt.Errorf("failed to move file into cache: %w", err)
		}
	}
	return dest, nil
}

// Evict removes the cached file of checksum so a verified copy can replace
// it. Evicting a missing file is not an error.
func (c *Cache) Evict(checksum string) error {
	if err := os.Remove(c.PathFor(checksum)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to evict cache entry: %w", err)
	}
	return nil
}

func (c *Cache) copyToTemp(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := c.TempFile("store-*")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to copy into cache: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to sync cache file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}
	return out.Name(), nil
}

// TempFile creates a scratch file on the cache volume, suitable for
// downloads that are moved in with Store.
func (c *Cache) TempFile(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(filepath.Join(c.root, tmpDir), pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return f, nil
}

// Stats walks the PDF tree.
func (c *Cache) Stats() (Stats, error) {
	var st Stats
	err := filepath.WalkDir(filepath.Join(c.root, pdfDir), func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".pdf" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.Files++
		st.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to walk cache: %w", err)
	}
	return st, nil
}

// SidecarPathFor is where the local copy of an attachment's annotations lives.
func (c *Cache) SidecarPathFor(attachmentID string) string {
	return filepath.Join(c.root, sidecarDir, attachmentID+".json")
}

// WriteSidecar replaces the local sidecar copy atomically.
func (c *Cache) WriteSidecar(attachmentID string, data []byte) error {
	f, err := c.TempFile("sidecar-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close sidecar: %w", err)
	}
	if err := os.Rename(f.Name(), c.SidecarPathFor(attachmentID)); err != nil {
		return fmt.Errorf("failed to move sidecar: %w", err)
	}
	return nil
}

// Checksum returns the lowercase hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
