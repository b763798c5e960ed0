package saver

import (
	"errors"
	"fmt"
)

// ErrSaveInFlight is returned by Save when another save is already
// running. The request is coalesced: the coordinator re-runs a save once
// the in-flight one completes if unsaved changes remain.
var ErrSaveInFlight = errors.New("saver: save already in flight")

// ErrClosed is returned by Save after the coordinator has been closed.
var ErrClosed = errors.New("saver: coordinator closed")

// AssetUploadError reports that one or more dirty assets failed to store.
// The snapshot was never submitted and the changed flag remains set, so a
// later autosave retries.
type AssetUploadError struct {
	AssetID string
	Code    string
	Err     error
}

func (e *AssetUploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("saver: asset %s upload failed (%s): %v", e.AssetID, e.Code, e.Err)
	}
	return fmt.Sprintf("saver: asset %s upload failed: %s", e.AssetID, e.Code)
}

func (e *AssetUploadError) Unwrap() error { return e.Err }

// RemoteError reports that the create or update call itself was rejected.
// The changed flag remains set.
type RemoteError struct {
	Op  string // "create" or "update"
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("saver: remote %s rejected: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
