// Package document implements the in-memory editable block-program
// document that editing sessions mutate and the saver persists.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/starford/raido/internal/checksum"
)

// Asset is one binary resource belonging to the document. Dirty assets
// (Clean == false) have not been confirmed stored remotely.
type Asset struct {
	ID         string
	Type       string
	DataFormat string
	Data       []byte
	Clean      bool
}

// Target is one scripted object in the program (sprite or stage) with an
// opaque block payload.
type Target struct {
	Name   string          `json:"name"`
	Blocks json.RawMessage `json:"blocks"`
}

// snapshot is the wire form produced by Serialize.
type snapshot struct {
	Title   string     `json:"title"`
	Targets []Target   `json:"targets"`
	Assets  []assetRef `json:"assets"`
}

type assetRef struct {
	AssetID    string `json:"assetId"`
	AssetType  string `json:"assetType"`
	DataFormat string `json:"dataFormat"`
}

// Document holds mutable editor state. All methods are safe for
// concurrent use. Every mutation invokes the change hook exactly once,
// which is how the saver learns that unsaved changes exist.
type Document struct {
	mu        sync.Mutex
	title     string
	targets   map[string]json.RawMessage
	assets    map[string]*Asset
	thumbnail []byte
	onChange  func()
}

// New creates an empty document.
func New() *Document {
	return &Document{
		targets: make(map[string]json.RawMessage),
		assets:  make(map[string]*Asset),
	}
}

// SetChangeHook registers the function invoked after every mutation.
// Pass nil to detach.
func (d *Document) SetChangeHook(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Document) changed() func() {
	return d.onChange
}

// notify runs the change hook outside the lock.
func notify(fn func()) {
	if fn != nil {
		fn()
	}
}

// Title returns the document title.
func (d *Document) Title() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title
}

// SetTitle updates the document title.
func (d *Document) SetTitle(title string) {
	d.mu.Lock()
	d.title = title
	fn := d.changed()
	d.mu.Unlock()
	notify(fn)
}

// PutTarget adds or replaces a target's block payload.
func (d *Document) PutTarget(name string, blocks json.RawMessage) {
	d.mu.Lock()
	d.targets[name] = blocks
	fn := d.changed()
	d.mu.Unlock()
	notify(fn)
}

// RemoveTarget deletes a target. Removing an unknown target is a no-op
// and does not count as a mutation.
func (d *Document) RemoveTarget(name string) {
	d.mu.Lock()
	if _, ok := d.targets[name]; !ok {
		d.mu.Unlock()
		return
	}
	delete(d.targets, name)
	fn := d.changed()
	d.mu.Unlock()
	notify(fn)
}

// PutAsset stores asset content and returns its content-addressed id.
// New content starts dirty; re-adding content that is already present
// keeps its existing clean flag.
func (d *Document) PutAsset(assetType, dataFormat string, data []byte) string {
	id := checksum.MD5(data)
	d.mu.Lock()
	if _, ok := d.assets[id]; !ok {
		d.assets[id] = &Asset{
			ID:         id,
			Type:       assetType,
			DataFormat: dataFormat,
			Data:       data,
		}
	}
	fn := d.changed()
	d.mu.Unlock()
	notify(fn)
	return id
}

// SetThumbnail records the latest client-captured thumbnail bytes.
// Thumbnails are presentation state, not document content, so this does
// not fire the change hook.
func (d *Document) SetThumbnail(data []byte) {
	d.mu.Lock()
	d.thumbnail = data
	d.mu.Unlock()
}

// Thumbnail returns the latest thumbnail bytes, or nil when none was set.
func (d *Document) Thumbnail() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thumbnail
}

// ModifiedAssets returns a copy of every asset whose clean flag is unset.
func (d *Document) ModifiedAssets() []Asset {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Asset
	for _, a := range d.assets {
		if !a.Clean {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkAssetClean flags an asset as confirmed stored. Idempotent; unknown
// ids are skipped.
func (d *Document) MarkAssetClean(id string) {
	d.mu.Lock()
	if a, ok := d.assets[id]; ok {
		a.Clean = true
	}
	d.mu.Unlock()
}

// AssetClean reports the clean flag of one asset.
func (d *Document) AssetClean(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.assets[id]
	return ok && a.Clean
}

// Serialize produces the canonical JSON snapshot of the current state.
// It is synchronous and does not retain references into the document, so
// the bytes stay stable while asynchronous saving proceeds.
func (d *Document) Serialize() ([]byte, error) {
	d.mu.Lock()
	snap := snapshot{
		Title:   d.title,
		Targets: make([]Target, 0, len(d.targets)),
		Assets:  make([]assetRef, 0, len(d.assets)),
	}
	for name, blocks := range d.targets {
		snap.Targets = append(snap.Targets, Target{Name: name, Blocks: blocks})
	}
	for _, a := range d.assets {
		snap.Assets = append(snap.Assets, assetRef{AssetID: a.ID, AssetType: a.Type, DataFormat: a.DataFormat})
	}
	d.mu.Unlock()

	sort.Slice(snap.Targets, func(i, j int) bool { return snap.Targets[i].Name < snap.Targets[j].Name })
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].AssetID < snap.Assets[j].AssetID })

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("document: serialize: %w", err)
	}
	return data, nil
}

// Load replaces the document structure from a serialized snapshot.
// Asset bytes are not part of snapshots; loaded assets start clean with
// empty data and are re-fetched lazily by callers that need content.
// Load does not fire the change hook.
func (d *Document) Load(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("document: load snapshot: %w", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = snap.Title
	d.targets = make(map[string]json.RawMessage, len(snap.Targets))
	for _, tgt := range snap.Targets {
		d.targets[tgt.Name] = tgt.Blocks
	}
	d.assets = make(map[string]*Asset, len(snap.Assets))
	for _, ref := range snap.Assets {
		d.assets[ref.AssetID] = &Asset{
			ID:         ref.AssetID,
			Type:       ref.AssetType,
			DataFormat: ref.DataFormat,
			Clean:      true,
		}
	}
	return nil
}
