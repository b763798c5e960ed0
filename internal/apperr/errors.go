package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrUnsavedChanges = errors.New("unsaved changes")
	ErrSessionClosed  = errors.New("session closed")
)
