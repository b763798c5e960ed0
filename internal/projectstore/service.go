// Package projectstore persists project snapshots, assets, and
// thumbnails. Service is the local implementation backed by blob storage
// and the catalog; Client speaks the same contract over HTTP to a remote
// workshop server.
package projectstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/saver"
	"github.com/starford/raido/internal/storage"
)

const (
	snapshotAssetType  = "project"
	snapshotFormat     = "json"
	thumbnailAssetType = "thumbnail"
	thumbnailFormat    = "jpg"
)

// Publisher receives store events for fan-out to connected clients.
type Publisher interface {
	Publish(event string, data any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) {}

// Service stores snapshots and assets locally.
type Service struct {
	blobs  storage.Provider
	cat    catalog.Store
	events Publisher
	log    *slog.Logger
}

// NewService creates a local project store. events may be nil.
func NewService(blobs storage.Provider, cat catalog.Store, events Publisher, log *slog.Logger) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{blobs: blobs, cat: cat, events: events, log: log}
}

var _ saver.Store = (*Service)(nil)

// CreateProject stores a new snapshot and catalog row and returns the
// generated project id.
func (s *Service) CreateProject(_ context.Context, snapshot []byte, params saver.SaveParams) (*saver.SaveResult, error) {
	snapID, err := s.blobs.Put(snapshotAssetType, snapshotFormat, snapshot)
	if err != nil {
		return nil, fmt.Errorf("projectstore: store snapshot: %w", err)
	}
	now := time.Now().UTC()
	p := models.Project{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(params.Title),
		OwnerID:    params.OwnerID,
		OriginalID: params.OriginalID,
		IsCopy:     params.IsCopy,
		IsRemix:    params.IsRemix,
		SnapshotID: snapID,
		Checksum:   checksum.Sum(snapshot),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if p.Title == "" {
		p.Title = "Untitled"
	}
	if err := s.cat.InsertProject(p); err != nil {
		return nil, fmt.Errorf("projectstore: insert project: %w", err)
	}
	s.log.Info("project created",
		slog.String("project_id", p.ID),
		slog.String("owner_id", p.OwnerID),
		slog.Bool("is_copy", p.IsCopy),
		slog.Bool("is_remix", p.IsRemix))
	s.events.Publish("project.created", p)
	return &saver.SaveResult{ID: p.ID, Title: p.Title}, nil
}

// UpdateProject replaces the snapshot of an existing project.
func (s *Service) UpdateProject(_ context.Context, id string, snapshot []byte, params saver.SaveParams) (*saver.SaveResult, error) {
	existing, err := s.cat.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("projectstore: load project %s: %w", id, err)
	}
	snapID, err := s.blobs.Put(snapshotAssetType, snapshotFormat, snapshot)
	if err != nil {
		return nil, fmt.Errorf("projectstore: store snapshot: %w", err)
	}
	p := *existing
	p.SnapshotID = snapID
	p.Checksum = checksum.Sum(snapshot)
	p.UpdatedAt = time.Now().UTC()
	if t := strings.TrimSpace(params.Title); t != "" {
		p.Title = t
	}
	if err := s.cat.UpdateProject(p); err != nil {
		return nil, fmt.Errorf("projectstore: update project %s: %w", id, err)
	}
	s.events.Publish("project.saved", p)
	return &saver.SaveResult{ID: p.ID, Title: p.Title}, nil
}

// StoreAsset writes asset data under its MD5 id. A mismatch between the
// claimed id and the stored content is rejected in the acknowledgment,
// not as a transport error.
func (s *Service) StoreAsset(_ context.Context, assetType, dataFormat string, data []byte, id string) (saver.Ack, error) {
	storedID, err := s.blobs.Put(assetType, dataFormat, data)
	if err != nil {
		s.log.Error("asset store failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()))
		return saver.Ack{Status: "error", Code: "InternalError"}, nil
	}
	if id != "" && id != storedID {
		return saver.Ack{Status: "error", Code: "ChecksumMismatch"}, nil
	}
	rec := models.AssetRecord{
		ID:         storedID,
		Type:       assetType,
		DataFormat: dataFormat,
		Size:       int64(len(data)),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.cat.UpsertAsset(rec); err != nil {
		return saver.Ack{Status: "error", Code: "InternalError"}, nil
	}
	return saver.Ack{Status: "ok"}, nil
}

// StoreThumbnail stores the jpeg thumbnail blob and points the project
// row at it.
func (s *Service) StoreThumbnail(_ context.Context, projectID string, data []byte) error {
	id, err := s.blobs.Put(thumbnailAssetType, thumbnailFormat, data)
	if err != nil {
		return fmt.Errorf("projectstore: store thumbnail: %w", err)
	}
	if err := s.cat.SetProjectThumbnail(projectID, id); err != nil {
		return fmt.Errorf("projectstore: set thumbnail %s: %w", projectID, err)
	}
	return nil
}

// Get returns the catalog row for a project.
func (s *Service) Get(id string) (*models.Project, error) {
	return s.cat.GetProject(id)
}

// Recent returns the most recently updated project of an owner.
func (s *Service) Recent(ownerID string) (*models.Project, error) {
	return s.cat.RecentProject(ownerID)
}

// List pages through an owner's projects, newest first.
func (s *Service) List(ownerID string, limit, offset int) ([]models.Project, int, error) {
	return s.cat.ListProjects(ownerID, limit, offset)
}

// Snapshot returns the stored snapshot content of a project.
func (s *Service) Snapshot(id string) ([]byte, error) {
	p, err := s.cat.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p.SnapshotID == "" {
		return nil, fmt.Errorf("projectstore: project %s: %w", id, apperr.ErrNotFound)
	}
	return s.blobs.Get(snapshotAssetType, snapshotFormat, p.SnapshotID)
}

// Thumbnail returns the stored thumbnail content of a project.
func (s *Service) Thumbnail(id string) ([]byte, error) {
	p, err := s.cat.GetProject(id)
	if err != nil {
		return nil, err
	}
	if p.Thumbnail == "" {
		return nil, fmt.Errorf("projectstore: project %s thumbnail: %w", id, apperr.ErrNotFound)
	}
	return s.blobs.Get(thumbnailAssetType, thumbnailFormat, p.Thumbnail)
}

// Delete removes the catalog row. Blobs stay behind; the library
// reconciler prunes unreferenced ones.
func (s *Service) Delete(id string) error {
	if err := s.cat.DeleteProject(id); err != nil {
		return err
	}
	s.events.Publish("project.deleted", map[string]string{"id": id})
	return nil
}

// Copy duplicates an existing project for ownerID and returns the new
// project. The copy carries a pointer back to the original.
func (s *Service) Copy(ctx context.Context, id, ownerID string) (*saver.SaveResult, error) {
	return s.duplicate(ctx, id, ownerID, " copy", true, false)
}

// Remix duplicates a (possibly foreign) project as a remix for ownerID.
func (s *Service) Remix(ctx context.Context, id, ownerID string) (*saver.SaveResult, error) {
	return s.duplicate(ctx, id, ownerID, " remix", false, true)
}

func (s *Service) duplicate(ctx context.Context, id, ownerID, suffix string, isCopy, isRemix bool) (*saver.SaveResult, error) {
	p, err := s.cat.GetProject(id)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(id)
	if err != nil {
		return nil, err
	}
	res, err := s.CreateProject(ctx, snap, saver.SaveParams{
		Title:      p.Title + suffix,
		OwnerID:    ownerID,
		OriginalID: p.ID,
		IsCopy:     isCopy,
		IsRemix:    isRemix,
	})
	if err != nil {
		return nil, err
	}
	if p.Thumbnail != "" {
		if data, terr := s.blobs.Get(thumbnailAssetType, thumbnailFormat, p.Thumbnail); terr == nil {
			if terr = s.StoreThumbnail(ctx, res.ID, data); terr != nil {
				s.log.Warn("copy thumbnail failed", slog.String("error", terr.Error()))
			}
		}
	}
	return res, nil
}
