// Package storage implements content-addressed blob storage for project
// and backpack assets.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/checksum"
)

// FS implements Provider backed by the local file system. Blobs live at
// <root>/<assetType>/<id>.<dataFormat>, where id is the MD5 of the content.
type FS struct {
	root string // absolute path to the blob root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute blob root directory.
func (f *FS) Root() string {
	return f.root
}

// blobPath builds the on-disk path for a blob and rejects any component
// that escapes the root (directory traversal).
func (f *FS) blobPath(assetType, dataFormat, id string) (string, error) {
	for _, part := range []string{assetType, dataFormat, id} {
		if part == "" {
			return "", fmt.Errorf("storage: empty blob path component")
		}
		cleaned := filepath.Clean(part)
		if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
			return "", fmt.Errorf("storage: invalid blob path component: %s", part)
		}
	}
	abs := filepath.Join(f.root, assetType, id+"."+normalizeExt(dataFormat))
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes blob root: %s/%s", assetType, id)
	}
	return abs, nil
}

// normalizeExt maps format aliases to a single on-disk extension.
func normalizeExt(dataFormat string) string {
	ext := strings.ToLower(strings.TrimPrefix(dataFormat, "."))
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

// Put writes data atomically under its MD5 id: tmp file → fsync → rename.
// Returns the id. If the blob already exists the write is skipped.
func (f *FS) Put(assetType, dataFormat string, data []byte) (string, error) {
	id := checksum.MD5(data)
	abs, err := f.blobPath(assetType, dataFormat, id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err == nil {
		return id, nil
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".raido-tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return id, nil
}

// Get returns the raw bytes of a blob.
func (f *FS) Get(assetType, dataFormat, id string) ([]byte, error) {
	abs, err := f.blobPath(assetType, dataFormat, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s/%s: %w", assetType, id, err)
	}
	return data, nil
}

// Exists reports whether a blob is present on disk.
func (f *FS) Exists(assetType, dataFormat, id string) bool {
	abs, err := f.blobPath(assetType, dataFormat, id)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Delete removes a blob.
func (f *FS) Delete(assetType, dataFormat, id string) error {
	abs, err := f.blobPath(assetType, dataFormat, id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", assetType, id, err)
	}
	return nil
}

// List walks the blob root and returns metadata for every stored blob.
// When assetType is non-empty only that subtree is listed.
func (f *FS) List(assetType string) ([]BlobInfo, error) {
	base := f.root
	if assetType != "" {
		var err error
		if base, err = f.typeDir(assetType); err != nil {
			return nil, err
		}
		if _, err := os.Stat(base); os.IsNotExist(err) {
			return nil, nil
		}
	}
	var out []BlobInfo
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		typ := filepath.Dir(rel)
		name := d.Name()
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		out = append(out, BlobInfo{
			ID:         strings.TrimSuffix(name, filepath.Ext(name)),
			AssetType:  typ,
			DataFormat: ext,
			Size:       info.Size(),
			UpdatedAt:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

func (f *FS) typeDir(assetType string) (string, error) {
	cleaned := filepath.Clean(assetType)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("storage: invalid asset type: %s", assetType)
	}
	return filepath.Join(f.root, cleaned), nil
}
