package projectstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/saver"
	"github.com/starford/raido/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ any) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) seen(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

func testService(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	blobs, cat := testutil.TestStores(t)
	pub := &recordingPublisher{}
	return NewService(blobs, cat, pub, nil), pub
}

func TestCreateAndReadBack(t *testing.T) {
	svc, pub := testService(t)
	ctx := context.Background()
	snap := []byte(`{"title":"Hello","targets":[]}`)

	res, err := svc.CreateProject(ctx, snap, saver.SaveParams{Title: "Hello", OwnerID: "owner-1"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if res.ID == "" {
		t.Fatal("no id generated")
	}

	p, err := svc.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Title != "Hello" || p.OwnerID != "owner-1" {
		t.Fatalf("row = %+v", p)
	}
	if p.Checksum != checksum.Sum(snap) {
		t.Fatal("checksum does not match snapshot")
	}

	got, err := svc.Snapshot(res.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if string(got) != string(snap) {
		t.Fatalf("snapshot round trip = %q", got)
	}
	if !pub.seen("project.created") {
		t.Fatal("no project.created event")
	}
}

func TestCreateDefaultsTitle(t *testing.T) {
	svc, _ := testService(t)
	res, err := svc.CreateProject(context.Background(), []byte(`{}`), saver.SaveParams{Title: "   "})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	p, err := svc.Get(res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Title != "Untitled" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestUpdateReplacesSnapshot(t *testing.T) {
	svc, pub := testService(t)
	ctx := context.Background()

	res, err := svc.CreateProject(ctx, []byte(`{"v":1}`), saver.SaveParams{Title: "p"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.UpdateProject(ctx, res.ID, []byte(`{"v":2}`), saver.SaveParams{}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	got, err := svc.Snapshot(res.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("snapshot = %q", got)
	}
	if !pub.seen("project.saved") {
		t.Fatal("no project.saved event")
	}
}

func TestUpdateMissingProject(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.UpdateProject(context.Background(), "nope", []byte(`{}`), saver.SaveParams{})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreAssetAck(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	data := []byte("costume bytes")
	id := checksum.MD5(data)

	ack, err := svc.StoreAsset(ctx, "costume", "png", data, id)
	if err != nil {
		t.Fatalf("StoreAsset: %v", err)
	}
	if ack.Status != "ok" {
		t.Fatalf("ack = %+v", ack)
	}

	// A claimed id that does not match the content is rejected in the
	// ack, not as a transport error.
	ack, err = svc.StoreAsset(ctx, "costume", "png", data, "0000")
	if err != nil {
		t.Fatalf("StoreAsset: %v", err)
	}
	if ack.Status != "error" || ack.Code != "ChecksumMismatch" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestThumbnailRoundTrip(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	res, err := svc.CreateProject(ctx, []byte(`{}`), saver.SaveParams{Title: "p"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if _, err := svc.Thumbnail(res.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("thumbnail before store: %v", err)
	}

	if err := svc.StoreThumbnail(ctx, res.ID, []byte("jpeg bytes")); err != nil {
		t.Fatalf("StoreThumbnail: %v", err)
	}
	got, err := svc.Thumbnail(res.ID)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if string(got) != "jpeg bytes" {
		t.Fatalf("thumbnail = %q", got)
	}
}

func TestCopyAndRemix(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	res, err := svc.CreateProject(ctx, []byte(`{"v":1}`), saver.SaveParams{Title: "Original", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	dup, err := svc.Copy(ctx, res.ID, "alice")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	p, err := svc.Get(dup.ID)
	if err != nil {
		t.Fatalf("Get copy: %v", err)
	}
	if !p.IsCopy || p.IsRemix || p.OriginalID != res.ID || p.Title != "Original copy" {
		t.Fatalf("copy row = %+v", p)
	}

	remix, err := svc.Remix(ctx, res.ID, "bob")
	if err != nil {
		t.Fatalf("Remix: %v", err)
	}
	p, err = svc.Get(remix.ID)
	if err != nil {
		t.Fatalf("Get remix: %v", err)
	}
	if !p.IsRemix || p.IsCopy || p.OriginalID != res.ID || p.OwnerID != "bob" {
		t.Fatalf("remix row = %+v", p)
	}

	snap, err := svc.Snapshot(remix.ID)
	if err != nil {
		t.Fatalf("Snapshot remix: %v", err)
	}
	if string(snap) != `{"v":1}` {
		t.Fatal("remix snapshot differs from original")
	}
}

func TestDeleteProject(t *testing.T) {
	svc, pub := testService(t)
	res, err := svc.CreateProject(context.Background(), []byte(`{}`), saver.SaveParams{Title: "p"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if err := svc.Delete(res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(res.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if !pub.seen("project.deleted") {
		t.Fatal("no project.deleted event")
	}
}
