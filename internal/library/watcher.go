// Package library keeps the asset catalog consistent with the blob
// store on disk. Blobs dropped into the store out-of-band (bulk imports,
// rsync restores) get registered; records whose blobs vanished are
// removed.
package library

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/catalog"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/storage"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "registered", "removed".
type EventCallback func(kind, assetID string)

// Reconcile makes one full pass: catalog records without a blob on disk
// are dropped, blobs without a record are registered. Returns how many
// records changed. Run at startup and after rename storms.
func Reconcile(cat catalog.Store, blobs storage.Provider, logger *slog.Logger, cb EventCallback) (int, error) {
	if cb == nil {
		cb = func(string, string) {}
	}
	known, err := cat.AllAssetIDs()
	if err != nil {
		return 0, err
	}
	onDisk, err := blobs.List("")
	if err != nil {
		return 0, err
	}

	changed := 0
	seen := make(map[string]struct{}, len(onDisk))
	for _, info := range onDisk {
		seen[info.ID] = struct{}{}
		if _, ok := known[info.ID]; ok {
			continue
		}
		rec := models.AssetRecord{
			ID:         info.ID,
			Type:       info.AssetType,
			DataFormat: info.DataFormat,
			Size:       info.Size,
			CreatedAt:  info.UpdatedAt,
		}
		if err := cat.UpsertAsset(rec); err != nil {
			logger.Warn("reconcile: register failed",
				slog.String("asset_id", info.ID),
				slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("reconcile: registered", slog.String("asset_id", info.ID))
		if cb != nil {
			cb("registered", info.ID)
		}
	}

	for id := range known {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := cat.DeleteAsset(id); err != nil {
			logger.Warn("reconcile: remove failed",
				slog.String("asset_id", id),
				slog.String("error", err.Error()))
			continue
		}
		changed++
		logger.Debug("reconcile: removed stale", slog.String("asset_id", id))
		if cb != nil {
			cb("removed", id)
		}
	}
	return changed, nil
}

// Watch starts an fsnotify watcher on the blob root and keeps the asset
// catalog in sync until ctx is cancelled. It calls cb (if non-nil) after
// each catalog mutation.
//
// New asset-type directories created at runtime are automatically added
// to the watch list. Remove and rename events debounce into a full
// reconciliation pass, since blob files share content across owners and
// per-file bookkeeping can miss cross-directory moves.
func Watch(ctx context.Context, cat catalog.Store, blobs storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := blobs.Root()
	if err := addDirs(w, root); err != nil {
		return err
	}

	logger.Info("library watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("library watcher: stopped")
			return nil

		case <-reconcileCh:
			if _, err := Reconcile(cat, blobs, logger, cb); err != nil {
				logger.Warn("library watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						logger.Warn("library watcher: add dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// New type dir may already hold blobs.
					scheduleReconcile()
					continue
				}
			}

			if !isBlobFile(ev.Name) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				id, assetType, format, ok := parseBlobPath(root, ev.Name)
				if !ok {
					continue
				}
				size := int64(0)
				if info, statErr := os.Stat(ev.Name); statErr == nil {
					size = info.Size()
				}
				rec := models.AssetRecord{
					ID:         id,
					Type:       assetType,
					DataFormat: format,
					Size:       size,
					CreatedAt:  time.Now().UTC(),
				}
				if err := cat.UpsertAsset(rec); err != nil {
					logger.Warn("library watcher: register failed",
						slog.String("asset_id", id),
						slog.String("error", err.Error()))
					continue
				}
				logger.Debug("library watcher: registered", slog.String("asset_id", id))
				if cb != nil {
					cb("registered", id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("library watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// isBlobFile filters out editor droppings and partial writes. The blob
// store writes through hidden ".raido-tmp-*" staging names.
func isBlobFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.Contains(base, ".")
}

// parseBlobPath splits <root>/<assetType>/<id>.<ext> into its parts.
func parseBlobPath(root, path string) (id, assetType, format string, ok bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", "", false
	}
	assetType = parts[0]
	base := parts[1]
	i := strings.LastIndexByte(base, '.')
	if i <= 0 || i == len(base)-1 {
		return "", "", "", false
	}
	return base[:i], assetType, base[i+1:], true
}

func addDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
