// Package testutil provides shared test helpers for setting up blob stores and catalogs.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/storage"
)

// TestCatalog creates a temporary SQLite catalog that is automatically cleaned up.
func TestCatalog(t *testing.T) *catalog.DB {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

// TestBlobs creates a temporary blob store rooted in a throwaway directory.
func TestBlobs(t *testing.T) storage.Provider {
	t.Helper()
	root := filepath.Join(t.TempDir(), "blobs")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	blobs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return blobs
}

// TestStores creates a blob store and catalog pair for service tests.
func TestStores(t *testing.T) (storage.Provider, *catalog.DB) {
	t.Helper()
	return TestBlobs(t), TestCatalog(t)
}
