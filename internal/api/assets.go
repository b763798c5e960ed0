package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/storage"
)

const maxAssetBytes = 10 << 20

// AssetHandler stores and serves content-addressed asset blobs. Paths
// carry the md5-and-extension reference form: /assets/{type}/{md5}.{ext}.
type AssetHandler struct {
	store *projectstore.Service
	blobs storage.Provider
}

func NewAssetHandler(store *projectstore.Service, blobs storage.Provider) *AssetHandler {
	return &AssetHandler{store: store, blobs: blobs}
}

// splitMD5Ext splits "abc123.png" into id and format.
func splitMD5Ext(ref string) (id, format string, ok bool) {
	i := strings.LastIndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return "", "", false
	}
	return ref[:i], ref[i+1:], true
}

// Upload handles POST /assets/{type}/{ref}. The response is always a
// 200 acknowledgment; rejections carry a failure code inside it, the
// contract the save protocol's asset phase expects.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAssetBytes)
	assetType := chi.URLParam(r, "type")
	id, format, ok := splitMD5Ext(chi.URLParam(r, "ref"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("asset reference must be <md5>.<format>"))
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "code": "TooLarge"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("asset body is required"))
		return
	}

	ack, err := h.store.StoreAsset(r.Context(), assetType, format, data, id)
	if err != nil {
		slog.Error("asset upload failed",
			slog.String("asset_id", id),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// Serve handles GET /assets/{type}/{ref}.
func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	assetType := chi.URLParam(r, "type")
	id, format, ok := splitMD5Ext(chi.URLParam(r, "ref"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("asset reference must be <md5>.<format>"))
		return
	}
	data, err := h.blobs.Get(assetType, format, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.Header().Set("Content-Type", backpack.MimeFor(format))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
