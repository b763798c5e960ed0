package backpack

import (
	"errors"
	"fmt"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/testutil"
)

func testService(t *testing.T) *Service {
	t.Helper()
	blobs, cat := testutil.TestStores(t)
	return NewService(blobs, cat, nil)
}

func costumePayload(name string) SavePayload {
	return SavePayload{
		Type:      TypeCostume,
		Name:      name,
		Mime:      "image/png",
		Body:      []byte("png bytes " + name),
		Thumbnail: []byte("thumb " + name),
	}
}

func TestSaveAndReadBack(t *testing.T) {
	svc := testService(t)
	item, err := svc.Save("alice", costumePayload("cat"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if item.ID == "" || item.Type != TypeCostume || item.Mime != "image/png" {
		t.Fatalf("item = %+v", item)
	}

	body, mime, err := svc.Body(item.ID, "alice")
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if string(body) != "png bytes cat" || mime != "image/png" {
		t.Fatalf("body = %q mime = %q", body, mime)
	}

	thumb, err := svc.Thumbnail(item.ID, "alice")
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if string(thumb) != "thumb cat" {
		t.Fatalf("thumbnail = %q", thumb)
	}
}

func TestSaveValidation(t *testing.T) {
	svc := testService(t)
	for _, tt := range []struct {
		name    string
		payload SavePayload
	}{
		{"unknown type", SavePayload{Type: "hat", Name: "x", Body: []byte("b"), Thumbnail: []byte("t")}},
		{"empty name", SavePayload{Type: TypeCostume, Name: "  ", Body: []byte("b"), Thumbnail: []byte("t")}},
		{"empty body", SavePayload{Type: TypeSound, Name: "x", Thumbnail: []byte("t")}},
		{"missing thumbnail", SavePayload{Type: TypeSprite, Name: "x", Body: []byte("b")}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Save("alice", tt.payload); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	// Code items do not need a thumbnail.
	if _, err := svc.Save("alice", SavePayload{
		Type: TypeCode, Name: "my script", Mime: "application/json", Body: []byte(`[]`),
	}); err != nil {
		t.Fatalf("code item: %v", err)
	}
}

func TestListPagingNewestFirst(t *testing.T) {
	svc := testService(t)
	for i := 0; i < 5; i++ {
		if _, err := svc.Save("alice", costumePayload(fmt.Sprintf("c%d", i))); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	// Somebody else's items must not leak in.
	if _, err := svc.Save("bob", costumePayload("other")); err != nil {
		t.Fatalf("Save bob: %v", err)
	}

	page, err := svc.List("alice", 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 5 || !page.HasMore {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].Name != "c4" {
		t.Fatalf("first item = %q, want newest", page.Items[0].Name)
	}

	page, err = svc.List("alice", 2, 4)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.HasMore {
		t.Fatalf("last page = %+v", page)
	}
}

func TestDedupedBodies(t *testing.T) {
	svc := testService(t)
	p := costumePayload("same")
	a, err := svc.Save("alice", p)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := svc.Save("alice", p)
	if err != nil {
		t.Fatalf("Save again: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("items must get distinct ids")
	}
	if a.Body != b.Body {
		t.Fatal("identical content must share one body asset")
	}
}

func TestDeleteScopedToOwner(t *testing.T) {
	svc := testService(t)
	item, err := svc.Save("alice", costumePayload("cat"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := svc.Delete(item.ID, "bob"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cross-owner delete: %v", err)
	}
	if err := svc.Delete(item.ID, "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(item.ID, "alice"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
}

func TestParseDataURL(t *testing.T) {
	mime, data, err := ParseDataURL("data:image/png;base64,cGl4ZWxz")
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if mime != "image/png" || string(data) != "pixels" {
		t.Fatalf("mime=%q data=%q", mime, data)
	}

	// Vendor wav alias folds to the canonical type.
	mime, _, err = ParseDataURL("data:audio/x-wav;base64,cGl4ZWxz")
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if mime != "audio/wav" {
		t.Fatalf("mime = %q", mime)
	}

	if _, _, err := ParseDataURL("not a data url"); err == nil {
		t.Fatal("expected error for malformed input")
	}
	if _, _, err := ParseDataURL("data:image/png;base64,%%%"); err == nil {
		t.Fatal("expected error for bad base64")
	}
}

func TestEncodeDataURLRoundTrip(t *testing.T) {
	u := EncodeDataURL("image/gif", []byte{0x47, 0x49, 0x46})
	mime, data, err := ParseDataURL(u)
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if mime != "image/gif" || len(data) != 3 {
		t.Fatalf("mime=%q len=%d", mime, len(data))
	}
}

func TestMimeFor(t *testing.T) {
	if got := MimeFor("sprite3"); got != "application/zip" {
		t.Fatalf("sprite3 = %q", got)
	}
	if got := MimeFor("JPEG"); got != "image/jpeg" {
		t.Fatalf("JPEG = %q", got)
	}
	if got := MimeFor("weird"); got != "application/octet-stream" {
		t.Fatalf("weird = %q", got)
	}
}
