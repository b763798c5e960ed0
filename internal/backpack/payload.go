// Package backpack stores reusable clip-art items (costumes, sounds,
// sprites, and scripts) per user, with bodies and thumbnails kept as
// content-addressed assets.
package backpack

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// Item types.
const (
	TypeCostume = "costume"
	TypeSound   = "sound"
	TypeSprite  = "sprite"
	TypeCode    = "code"
)

var dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.*)$`)

// formatToMime maps asset data formats to the MIME type served back to
// clients. Image formats dominate; sprite archives and scripts have
// fixed types.
var formatToMime = map[string]string{
	"svg":           "image/svg+xml",
	"png":           "image/png",
	"jpg":           "image/jpeg",
	"jpeg":          "image/jpeg",
	"gif":           "image/gif",
	"bmp":           "image/bmp",
	"webp":          "image/webp",
	"avif":          "image/avif",
	"heic":          "image/heic",
	"heif":          "image/heif",
	"heic-sequence": "image/heic-sequence",
	"heif-sequence": "image/heif-sequence",
	"tif":           "image/tiff",
	"tiff":          "image/tiff",
	"wav":           "audio/wav",
	"mp3":           "audio/mpeg",
	"ogg":           "audio/ogg",
	"sprite3":       "application/zip",
	"json":          "application/json",
}

// MimeFor returns the MIME type for a data format, or
// application/octet-stream for unknown formats.
func MimeFor(dataFormat string) string {
	if m, ok := formatToMime[strings.ToLower(dataFormat)]; ok {
		return m
	}
	return "application/octet-stream"
}

// ParseDataURL decodes a base64 data URL into its MIME type and raw
// bytes. Browsers hand costume and thumbnail payloads over in this form.
func ParseDataURL(s string) (mime string, data []byte, err error) {
	m := dataURLPattern.FindStringSubmatch(s)
	if m == nil {
		return "", nil, fmt.Errorf("backpack: not a base64 data url")
	}
	data, err = base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, fmt.Errorf("backpack: decode data url: %w", err)
	}
	return normalizeMime(m[1]), data, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// normalizeMime folds vendor aliases into the canonical type.
func normalizeMime(mime string) string {
	switch strings.ToLower(mime) {
	case "audio/x-wav", "audio/wave":
		return "audio/wav"
	default:
		return strings.ToLower(mime)
	}
}

// SavePayload is an incoming backpack item before storage. Body and
// Thumbnail carry raw content; the service derives their asset ids.
type SavePayload struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Mime      string `json:"mime"`
	Body      []byte `json:"body"`
	Thumbnail []byte `json:"thumbnail"`
}

// Validate checks the payload. Thumbnails are optional for code items,
// required otherwise.
func (p SavePayload) Validate() error {
	switch p.Type {
	case TypeCostume, TypeSound, TypeSprite, TypeCode:
	default:
		return fmt.Errorf("backpack: unknown item type %q", p.Type)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("backpack: item name is required")
	}
	if len(p.Body) == 0 {
		return fmt.Errorf("backpack: item body is required")
	}
	if p.Type != TypeCode && len(p.Thumbnail) == 0 {
		return fmt.Errorf("backpack: thumbnail is required for %s items", p.Type)
	}
	return nil
}

// FormatFor returns the canonical data format for a MIME type, or ""
// when the type is unknown.
func FormatFor(mime string) string {
	for format, m := range formatToMime {
		if m == normalizeMime(mime) && format != "jpeg" && format != "tif" {
			return format
		}
	}
	return ""
}

// bodyFormat picks the storage data format for an item body from its
// MIME type, falling back to the type's conventional format.
func bodyFormat(itemType, mime string) string {
	if f := FormatFor(mime); f != "" {
		return f
	}
	switch itemType {
	case TypeSound:
		return "wav"
	case TypeSprite:
		return "sprite3"
	case TypeCode:
		return "json"
	default:
		return "png"
	}
}
