package saver

// State is the persistence lifecycle of one document. It replaces the
// cross-product of independent booleans (isCreatingNew, isUpdating,
// isShowingWithId, ...) with a single tagged value.
type State int

const (
	// StateUninitialized is the zero state before any lifecycle signal.
	StateUninitialized State = iota
	// StateShowingWithoutID: the document is displayed but has no remote id.
	StateShowingWithoutID
	// StateShowingWithID: the document is displayed and bound to a remote id.
	StateShowingWithID
	// StateCreating: a create-new save is in flight.
	StateCreating
	// StateCreatingCopy: a create-copy save is in flight.
	StateCreatingCopy
	// StateRemixing: a create-remix save is in flight.
	StateRemixing
	// StateUpdating: an update save is in flight.
	StateUpdating
)

func (s State) String() string {
	switch s {
	case StateShowingWithoutID:
		return "showing-without-id"
	case StateShowingWithID:
		return "showing-with-id"
	case StateCreating:
		return "creating"
	case StateCreatingCopy:
		return "creating-copy"
	case StateRemixing:
		return "remixing"
	case StateUpdating:
		return "updating"
	default:
		return "uninitialized"
	}
}

// saving reports whether a save of any kind is in flight in this state.
func (s State) saving() bool {
	switch s {
	case StateCreating, StateCreatingCopy, StateRemixing, StateUpdating:
		return true
	}
	return false
}

// Signals is the externally supplied lifecycle input for one tick.
// The coordinator diffs consecutive Signals values to derive explicit
// transition events.
type Signals struct {
	// CanSave: the caller has permission to update the remote document.
	CanSave bool
	// CanCreateNew: the caller has permission to create remote documents.
	CanCreateNew bool
	// IsShared: the document is shared with others.
	IsShared bool
	// ShowingWithID / ShowingWithoutID: how the document is currently
	// displayed. At most one should be set.
	ShowingWithID    bool
	ShowingWithoutID bool
}

// creatable: the document could be created remotely right now.
func (s Signals) creatable() bool {
	return s.CanCreateNew && s.ShowingWithoutID
}

// saveable: the document could be updated remotely right now.
func (s Signals) saveable() bool {
	return s.CanSave && s.ShowingWithID
}
