package backpack

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

const (
	// DefaultPageSize bounds list responses when the client does not ask
	// for a limit.
	DefaultPageSize = 20
	// MaxPageSize caps client-requested limits.
	MaxPageSize = 100

	assetTypeBody      = "backpack"
	assetTypeThumbnail = "backpack-thumbnail"
)

// Page is one slice of a user's backpack, newest first.
type Page struct {
	Items   []models.BackpackItem `json:"items"`
	Total   int                   `json:"total"`
	HasMore bool                  `json:"has_more"`
}

// Service stores and serves backpack items.
type Service struct {
	blobs storage.Provider
	cat   catalog.Store
	log   *slog.Logger
}

func NewService(blobs storage.Provider, cat catalog.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{blobs: blobs, cat: cat, log: log}
}

// Save stores a new item for ownerID. Bodies and thumbnails are
// content-addressed, so identical content across items is stored once.
func (s *Service) Save(ownerID string, p SavePayload) (*models.BackpackItem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	format := bodyFormat(p.Type, p.Mime)
	bodyID, err := s.blobs.Put(assetTypeBody, format, p.Body)
	if err != nil {
		return nil, fmt.Errorf("backpack: store body: %w", err)
	}
	if err := s.cat.UpsertAsset(models.AssetRecord{
		ID:         bodyID,
		Type:       assetTypeBody,
		DataFormat: format,
		Size:       int64(len(p.Body)),
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("backpack: record body: %w", err)
	}

	var thumbRef string
	if len(p.Thumbnail) > 0 {
		thumbID, err := s.blobs.Put(assetTypeThumbnail, "png", p.Thumbnail)
		if err != nil {
			return nil, fmt.Errorf("backpack: store thumbnail: %w", err)
		}
		if err := s.cat.UpsertAsset(models.AssetRecord{
			ID:         thumbID,
			Type:       assetTypeThumbnail,
			DataFormat: "png",
			Size:       int64(len(p.Thumbnail)),
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("backpack: record thumbnail: %w", err)
		}
		thumbRef = thumbID + ".png"
	}

	now := time.Now().UTC()
	item := models.BackpackItem{
		ID:        uuid.NewString(),
		Type:      p.Type,
		Name:      strings.TrimSpace(p.Name),
		Mime:      MimeFor(format),
		Body:      bodyID + "." + format,
		Thumbnail: thumbRef,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.cat.InsertBackpackItem(item); err != nil {
		return nil, fmt.Errorf("backpack: insert item: %w", err)
	}
	s.log.Info("backpack item saved",
		slog.String("item_id", item.ID),
		slog.String("owner_id", ownerID),
		slog.String("type", item.Type))
	return &item, nil
}

// List pages through ownerID's items, newest first.
func (s *Service) List(ownerID string, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.cat.ListBackpackItems(ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("backpack: list items: %w", err)
	}
	return &Page{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// Get returns one of ownerID's items.
func (s *Service) Get(id, ownerID string) (*models.BackpackItem, error) {
	return s.cat.GetBackpackItem(id, ownerID)
}

// Body returns the raw body content and MIME type of an item.
func (s *Service) Body(id, ownerID string) ([]byte, string, error) {
	item, err := s.cat.GetBackpackItem(id, ownerID)
	if err != nil {
		return nil, "", err
	}
	assetID, format := splitRef(item.Body)
	data, err := s.blobs.Get(assetTypeBody, format, assetID)
	if err != nil {
		return nil, "", fmt.Errorf("backpack: read body: %w", err)
	}
	return data, item.Mime, nil
}

// Thumbnail returns the thumbnail content of an item, or nil when the
// item has none.
func (s *Service) Thumbnail(id, ownerID string) ([]byte, error) {
	item, err := s.cat.GetBackpackItem(id, ownerID)
	if err != nil {
		return nil, err
	}
	if item.Thumbnail == "" {
		return nil, nil
	}
	assetID, format := splitRef(item.Thumbnail)
	data, err := s.blobs.Get(assetTypeThumbnail, format, assetID)
	if err != nil {
		return nil, fmt.Errorf("backpack: read thumbnail: %w", err)
	}
	return data, nil
}

// Delete removes an item row. Shared content-addressed blobs stay; the
// library reconciler prunes unreferenced ones.
func (s *Service) Delete(id, ownerID string) error {
	return s.cat.DeleteBackpackItem(id, ownerID)
}

// splitRef splits an "<md5>.<format>" asset reference.
func splitRef(ref string) (id, format string) {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
