package storage

import "time"

// BlobInfo describes one stored blob on disk.
type BlobInfo struct {
	ID         string
	AssetType  string
	DataFormat string
	Size       int64
	UpdatedAt  time.Time
}

// Provider abstracts content-addressed blob storage so the catalog and
// API layers can be tested against fakes.
type Provider interface {
	// Put writes data under its MD5 id and returns that id. Writing the
	// same content twice is a no-op.
	Put(assetType, dataFormat string, data []byte) (string, error)
	Get(assetType, dataFormat, id string) ([]byte, error)
	Exists(assetType, dataFormat, id string) bool
	Delete(assetType, dataFormat, id string) error
	// List walks the store and returns every blob, optionally restricted
	// to one asset type.
	List(assetType string) ([]BlobInfo, error)
	Root() string
}
