// Package saver implements the persistence coordinator: it decides when
// to create, update, or copy the remote representation of an in-memory
// document, debounces autosaves, sequences asset uploads before snapshot
// submission, and keeps local changed-state consistent with remote
// outcomes.
package saver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/document"
)

// DefaultAutosaveInterval is deliberately short so that work is rarely
// more than a few seconds from being persisted.
const DefaultAutosaveInterval = 10 * time.Second

// Document is what the coordinator needs from the editable document.
type Document interface {
	// Serialize produces an immutable snapshot of the current state.
	// Must be synchronous and must not reflect later mutations.
	Serialize() ([]byte, error)
	// ModifiedAssets enumerates assets not yet confirmed stored.
	ModifiedAssets() []document.Asset
	// MarkAssetClean flags an asset as stored. Idempotent.
	MarkAssetClean(id string)
	// Thumbnail returns the latest client-captured thumbnail, or nil.
	Thumbnail() []byte
}

// Ack is the asset store acknowledgment. Asset servers respond with
// {status: "ok"} on success and carry a failure code otherwise.
type Ack struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
}

// SaveParams are the extra request parameters for create/update calls.
type SaveParams struct {
	Title      string `json:"title,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	OriginalID string `json:"original_id,omitempty"`
	IsCopy     bool   `json:"is_copy,omitempty"`
	IsRemix    bool   `json:"is_remix,omitempty"`
}

// SaveOptions adjust a single save invocation.
type SaveOptions struct {
	// Creating marks the save as a project creation, which forces a
	// thumbnail store even when thumbnails are otherwise deferred.
	Creating bool
}

// SaveResult is returned by the remote store on success. ID is always
// present.
type SaveResult struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Store is the remote persistence collaborator.
type Store interface {
	CreateProject(ctx context.Context, snapshot []byte, params SaveParams) (*SaveResult, error)
	UpdateProject(ctx context.Context, id string, snapshot []byte, params SaveParams) (*SaveResult, error)
	StoreAsset(ctx context.Context, assetType, dataFormat string, data []byte, id string) (Ack, error)
	// StoreThumbnail is best-effort; the coordinator never fails a save
	// over it.
	StoreThumbnail(ctx context.Context, projectID string, data []byte) error
}

// Telemetry receives save lifecycle events. Failures are logged and
// discarded, never propagated into the save path.
type Telemetry interface {
	Report(event string, metadata map[string]any) error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithAutosaveInterval overrides the debounce interval.
func WithAutosaveInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDeferThumbnails suppresses automatic thumbnail stores after
// updates; creations still store one.
func WithDeferThumbnails(defer_ bool) Option {
	return func(c *Coordinator) { c.deferThumbnails = defer_ }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithTelemetry attaches a telemetry sink.
func WithTelemetry(t Telemetry) Option {
	return func(c *Coordinator) { c.telemetry = t }
}

type saveKind int

const (
	saveKindNone saveKind = iota
	saveKindCreate
	saveKindUpdate
)

// Coordinator owns the autosave timer, the changed flag, and the save
// protocol for one document. Methods are safe for concurrent use; at
// most one save runs at a time and overlapping requests coalesce.
type Coordinator struct {
	doc             Document
	remote          Store
	telemetry       Telemetry
	log             *slog.Logger
	interval        time.Duration
	deferThumbnails bool

	mu        sync.Mutex
	state     State
	sig       Signals
	projectID string
	changed   bool
	epoch     uint64 // bumped on every mutation; detects changes made mid-save
	timer     *time.Timer
	inFlight  bool
	pending   bool // a save was requested while one was in flight
	lastSave  saveKind
	lastTick  State
	closed    bool

	// afterFunc is a seam for tests to control timer firing.
	afterFunc func(d time.Duration, fn func()) *time.Timer

	tasks sync.WaitGroup // detached thumbnail/telemetry work
}

// New creates a coordinator for doc backed by remote.
func New(doc Document, remote Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		doc:       doc,
		remote:    remote,
		log:       slog.Default(),
		interval:  DefaultAutosaveInterval,
		afterFunc: time.AfterFunc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindProject associates the coordinator with an existing remote id, as
// when a session opens a previously saved project.
func (c *Coordinator) BindProject(id string) {
	c.mu.Lock()
	c.projectID = id
	if !c.state.saving() {
		c.state = StateShowingWithID
	}
	c.mu.Unlock()
}

// ProjectID returns the bound remote id, or "" before creation.
func (c *Coordinator) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Changed reports whether unsaved mutations exist.
func (c *Coordinator) Changed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// MarkChanged records a document mutation and schedules an autosave.
// Wired to the document's change hook.
func (c *Coordinator) MarkChanged() {
	c.mu.Lock()
	c.changed = true
	c.epoch++
	c.mu.Unlock()
	c.ScheduleAutosave()
}

// ScheduleAutosave arms the autosave timer. No-op when a timer is
// already pending, when the document is not in a saveable lifecycle
// state, or after Close.
func (c *Coordinator) ScheduleAutosave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.timer != nil {
		return
	}
	if !c.saveableLocked() {
		return
	}
	c.timer = c.afterFunc(c.interval, c.autosaveFired)
}

func (c *Coordinator) saveableLocked() bool {
	return c.sig.CanSave && c.projectID != "" && c.state == StateShowingWithID
}

func (c *Coordinator) autosaveFired() {
	c.mu.Lock()
	c.timer = nil
	c.mu.Unlock()
	c.AttemptAutosave()
}

// AttemptAutosave performs a full save if the changed flag is set and the
// document is saveable; otherwise it does nothing. Safe to call at any
// time.
func (c *Coordinator) AttemptAutosave() {
	c.mu.Lock()
	ok := c.changed && c.saveableLocked()
	id := c.projectID
	c.mu.Unlock()
	if !ok {
		return
	}
	if _, err := c.Save(context.Background(), id, SaveParams{}, SaveOptions{}); err != nil &&
		!errors.Is(err, ErrSaveInFlight) {
		c.log.Error("autosave failed",
			slog.String("project_id", id),
			slog.String("error", err.Error()))
	}
}

// CancelPendingAutosave clears any pending timer, synchronously. Safe to
// call when none is pending.
func (c *Coordinator) CancelPendingAutosave() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Close cancels any pending autosave, prevents further saves, and waits
// for detached post-save work to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	c.tasks.Wait()
}

// Save runs the full save protocol. An empty targetID creates a new
// remote project (plain, copy, or remix depending on params); otherwise
// the existing project is updated. On success the returned result always
// carries the remote id.
//
// If a save is already in flight the request returns ErrSaveInFlight and
// is coalesced: once the running save completes, a follow-up autosave is
// attempted when unsaved changes remain.
func (c *Coordinator) Save(ctx context.Context, targetID string, params SaveParams, opts SaveOptions) (*SaveResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.inFlight {
		c.pending = true
		c.mu.Unlock()
		return nil, ErrSaveInFlight
	}
	c.inFlight = true
	// A save about to happen makes a scheduled one redundant.
	c.stopTimerLocked()
	prevState := c.state
	c.state = stateFor(targetID, params)
	c.mu.Unlock()

	res, epoch, err := c.doSave(ctx, targetID, params)

	c.mu.Lock()
	c.inFlight = false
	pending := c.pending
	c.pending = false
	if err != nil {
		c.state = rollbackState(prevState, targetID)
	} else {
		c.projectID = res.ID
		c.state = StateShowingWithID
		// Only clear the flag when no mutation landed after the
		// snapshot was taken; otherwise the next autosave re-saves.
		if c.epoch == epoch {
			c.changed = false
		}
	}
	c.lastSave = saveKindUpdate
	if targetID == "" {
		c.lastSave = saveKindCreate
	}
	stillChanged := c.changed
	c.mu.Unlock()

	if err != nil {
		c.log.Error("save failed",
			slog.String("target_id", targetID),
			slog.String("error", err.Error()))
		// The changed flag is still set; give retry a tick to land on.
		c.ScheduleAutosave()
		return nil, err
	}

	c.storeThumbnailAsync(res.ID, opts)
	if targetID == "" {
		c.report("projectWasCreated")
	}
	c.report("projectDidSave")

	switch {
	case pending && stillChanged:
		// Someone asked for a save while this one ran; serve it now.
		go c.AttemptAutosave()
	case stillChanged:
		// A mutation landed mid-save; let the debounce pick it up.
		c.ScheduleAutosave()
	}
	return res, nil
}

// doSave executes snapshot, asset uploads, and remote submission.
// Returns the mutation epoch captured alongside the snapshot.
func (c *Coordinator) doSave(ctx context.Context, targetID string, params SaveParams) (*SaveResult, uint64, error) {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	// Serialize now, before any asynchronous work, so the snapshot
	// cannot reference assets newer than the ones being uploaded.
	snapshot, err := c.doc.Serialize()
	if err != nil {
		return nil, epoch, err
	}

	if err := c.uploadDirtyAssets(ctx); err != nil {
		return nil, epoch, err
	}

	var res *SaveResult
	if targetID == "" {
		res, err = c.remote.CreateProject(ctx, snapshot, params)
		if err != nil {
			return nil, epoch, &RemoteError{Op: "create", Err: err}
		}
	} else {
		res, err = c.remote.UpdateProject(ctx, targetID, snapshot, params)
		if err != nil {
			return nil, epoch, &RemoteError{Op: "update", Err: err}
		}
	}
	return res, epoch, nil
}

// uploadDirtyAssets stores every modified asset in parallel and marks
// each clean on success. Any failure aborts the whole save before the
// snapshot is submitted.
func (c *Coordinator) uploadDirtyAssets(ctx context.Context) error {
	assets := c.doc.ModifiedAssets()
	if len(assets) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range assets {
		g.Go(func() error {
			ack, err := c.remote.StoreAsset(gctx, a.Type, a.DataFormat, a.Data, a.ID)
			if err != nil {
				return &AssetUploadError{AssetID: a.ID, Code: "NetworkError", Err: err}
			}
			if ack.Status != "ok" {
				return &AssetUploadError{AssetID: a.ID, Code: ack.Code}
			}
			c.doc.MarkAssetClean(a.ID)
			return nil
		})
	}
	return g.Wait()
}

// storeThumbnailAsync stores the current thumbnail after a successful
// save. Runs detached; failures are logged, never joined into the save
// outcome. Creations always store one, even when thumbnails are
// otherwise deferred to a manual trigger.
func (c *Coordinator) storeThumbnailAsync(projectID string, opts SaveOptions) {
	if c.deferThumbnails && !opts.Creating {
		return
	}
	thumb := c.doc.Thumbnail()
	if len(thumb) == 0 {
		return
	}
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		if err := c.remote.StoreThumbnail(context.Background(), projectID, thumb); err != nil {
			c.log.Warn("thumbnail store failed",
				slog.String("project_id", projectID),
				slog.String("error", err.Error()))
		}
	}()
}

// Seed initializes the lifecycle signals without firing transition
// triggers. Used when a session starts, so that opening an existing
// saveable project does not count as "just became saveable".
func (c *Coordinator) Seed(sig Signals) {
	c.mu.Lock()
	c.sig = sig
	c.settleLocked(sig)
	c.lastTick = c.state
	c.mu.Unlock()
}

func (c *Coordinator) settleLocked(sig Signals) {
	if c.state.saving() {
		return
	}
	switch {
	case sig.ShowingWithID && c.projectID != "":
		c.state = StateShowingWithID
	case sig.ShowingWithoutID && c.projectID == "":
		c.state = StateShowingWithoutID
	}
}

// Apply feeds one tick of lifecycle signals into the coordinator and
// fires the transition-driven saves: a document that just became
// creatable is created; one that just became saveable (or newly shared)
// is updated. Triggers are suppressed on the tick immediately following
// a save attempt of the same kind to avoid feedback loops.
func (c *Coordinator) Apply(ctx context.Context, sig Signals) {
	c.mu.Lock()
	prevSig := c.sig
	prevTick := c.lastTick
	lastSave := c.lastSave
	c.lastSave = saveKindNone
	c.sig = sig
	c.settleLocked(sig)
	c.lastTick = c.state
	projectID := c.projectID
	c.mu.Unlock()

	// Don't try to create or save immediately after trying to create.
	if lastSave == saveKindCreate || creatingTick(prevTick) {
		return
	}
	if sig.creatable() && !prevSig.creatable() {
		if _, err := c.Save(ctx, "", SaveParams{}, SaveOptions{Creating: true}); err != nil &&
			!errors.Is(err, ErrSaveInFlight) {
			c.log.Error("lifecycle create failed", slog.String("error", err.Error()))
		}
		return
	}

	// Don't try to save immediately after trying to save.
	if lastSave == saveKindUpdate || prevTick == StateUpdating {
		return
	}
	becameAbleToSave := sig.CanSave && !prevSig.CanSave
	becameShared := sig.IsShared && !prevSig.IsShared
	if sig.saveable() && (becameAbleToSave || becameShared) && projectID != "" {
		if _, err := c.Save(ctx, projectID, SaveParams{}, SaveOptions{}); err != nil &&
			!errors.Is(err, ErrSaveInFlight) {
			c.log.Error("lifecycle update failed", slog.String("error", err.Error()))
		}
	}
}

func creatingTick(s State) bool {
	return s == StateCreating || s == StateCreatingCopy || s == StateRemixing
}

func stateFor(targetID string, params SaveParams) State {
	switch {
	case targetID != "":
		return StateUpdating
	case params.IsCopy:
		return StateCreatingCopy
	case params.IsRemix:
		return StateRemixing
	default:
		return StateCreating
	}
}

func rollbackState(prev State, targetID string) State {
	if targetID == "" {
		return StateShowingWithoutID
	}
	if prev.saving() {
		return StateShowingWithID
	}
	return prev
}

// report sends a telemetry event. Failures (including panics in the
// sink) are logged and discarded.
func (c *Coordinator) report(event string) {
	if c.telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("telemetry panic", slog.String("event", event), slog.Any("panic", r))
		}
	}()
	meta := map[string]any{
		"projectId": c.ProjectID(),
		"state":     c.State().String(),
	}
	if err := c.telemetry.Report(event, meta); err != nil {
		c.log.Error("telemetry error", slog.String("event", event), slog.String("error", err.Error()))
	}
}
