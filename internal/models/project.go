// Package models defines the shared data types stored in the catalog.
package models

import "time"

// Project is the catalog record for a persisted project.
type Project struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	OwnerID    string    `json:"owner_id,omitempty"`
	OriginalID string    `json:"original_id,omitempty"`
	IsCopy     bool      `json:"is_copy,omitempty"`
	IsRemix    bool      `json:"is_remix,omitempty"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Checksum   string    `json:"checksum"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AssetRecord is the catalog record for a stored binary asset.
// Asset ids are the MD5 of the content, so records are deduplicated
// across projects and backpack items.
type AssetRecord struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DataFormat string    `json:"data_format"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// BackpackItem is a saved clip-art item in a user's backpack.
// Body and Thumbnail reference asset ids.
type BackpackItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Mime      string    `json:"mime"`
	Body      string    `json:"body"`
	Thumbnail string    `json:"thumbnail"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
