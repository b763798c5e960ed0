package api

import (
	"fmt"
	"strings"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/session"
)

// applyOp applies one document mutation to a session. put_asset returns
// the content-addressed id assigned to the asset.
func applyOp(s *session.Session, op opRequest) (string, error) {
	switch op.Op {
	case "set_title":
		if strings.TrimSpace(op.Name) == "" {
			return "", fmt.Errorf("title is required")
		}
		s.Doc.SetTitle(op.Name)
		return "", nil

	case "put_target":
		if op.Name == "" || len(op.Blocks) == 0 {
			return "", fmt.Errorf("name and blocks are required")
		}
		s.Doc.PutTarget(op.Name, op.Blocks)
		return "", nil

	case "remove_target":
		if op.Name == "" {
			return "", fmt.Errorf("name is required")
		}
		s.Doc.RemoveTarget(op.Name)
		return "", nil

	case "put_asset":
		if op.Type == "" {
			return "", fmt.Errorf("asset type is required")
		}
		mime, data, err := backpack.ParseDataURL(op.Data)
		if err != nil {
			return "", err
		}
		format := backpack.FormatFor(mime)
		if format == "" {
			return "", fmt.Errorf("unsupported asset mime %q", mime)
		}
		return s.Doc.PutAsset(op.Type, format, data), nil

	case "set_thumbnail":
		_, data, err := backpack.ParseDataURL(op.Data)
		if err != nil {
			return "", err
		}
		s.SaveThumbnail(data)
		return "", nil

	case "cancel_autosave":
		s.CancelAutosave()
		return "", nil

	default:
		return "", fmt.Errorf("unknown op %q", op.Op)
	}
}
