package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/classroom"
	"github.com/starford/raido/internal/projectstore"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/testutil"
)

func newTestServer(t *testing.T, authEnabled bool, token string) *httptest.Server {
	t.Helper()
	blobs, cat := testutil.TestStores(t)

	projects := projectstore.NewService(blobs, cat, nil, nil)
	sessions := session.NewManager(projects, nil)
	t.Cleanup(sessions.CloseAll)

	deps := Deps{
		Sessions:  sessions,
		Projects:  projects,
		Blobs:     blobs,
		Backpack:  backpack.NewService(blobs, cat, nil),
		Classroom: classroom.NewService(cat, nil),
	}
	srv := httptest.NewServer(NewRouter(deps, authEnabled, token))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, true, "secret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/projects", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/projects", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed request: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("with token: %d", resp2.StatusCode)
	}
}

func TestSessionEditSaveDownload(t *testing.T) {
	srv := newTestServer(t, false, "")

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session: %d %s", resp.StatusCode, raw)
	}
	sess := decode[sessionResponse](t, raw)
	if sess.State != "showing-without-id" {
		t.Fatalf("initial state = %q", sess.State)
	}

	ops := []map[string]any{
		{"op": "set_title", "name": "Rocket Game"},
		{"op": "put_target", "name": "stage", "blocks": json.RawMessage(`{"blocks":[]}`)},
		{"op": "put_asset", "type": "costume",
			"data": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("pixels"))},
	}
	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/ops", ops)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ops: %d %s", resp.StatusCode, raw)
	}
	opsResp := decode[struct {
		Session  sessionResponse `json:"session"`
		AssetIDs []string        `json:"asset_ids"`
	}](t, raw)
	if !opsResp.Session.Changed {
		t.Fatal("ops did not mark session changed")
	}
	if len(opsResp.AssetIDs) != 1 {
		t.Fatalf("asset ids = %v", opsResp.AssetIDs)
	}

	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/save", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: %d %s", resp.StatusCode, raw)
	}
	saveResp := decode[struct {
		Result struct {
			ID string `json:"id"`
		} `json:"result"`
		Session sessionResponse `json:"session"`
	}](t, raw)
	if saveResp.Result.ID == "" {
		t.Fatal("save returned no project id")
	}
	if saveResp.Session.Changed {
		t.Fatal("save did not clear changed")
	}
	if saveResp.Session.State != "showing-with-id" {
		t.Fatalf("state after save = %q", saveResp.Session.State)
	}

	// The uploaded asset is servable under its md5 reference.
	resp, _ = doJSON(t, http.MethodGet,
		srv.URL+"/assets/costume/"+opsResp.AssetIDs[0]+".png", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("serve asset: %d", resp.StatusCode)
	}

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/projects/"+saveResp.Result.ID+"/download", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download: %d", resp.StatusCode)
	}
	snap := decode[struct {
		Title string `json:"title"`
	}](t, raw)
	if snap.Title != "Rocket Game" {
		t.Fatalf("snapshot title = %q", snap.Title)
	}
}

func TestSessionCloseRequiresForceWhenDirty(t *testing.T) {
	srv := newTestServer(t, false, "")

	_, raw := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	sess := decode[sessionResponse](t, raw)

	ops := []map[string]any{{"op": "set_title", "name": "dirty"}}
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/ops", ops)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/sessions/"+sess.ID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("dirty close: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/sessions/"+sess.ID+"?force=true", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("forced close: %d", resp.StatusCode)
	}
}

func TestSaveAsCopyEndpoint(t *testing.T) {
	srv := newTestServer(t, false, "")

	_, raw := doJSON(t, http.MethodPost, srv.URL+"/sessions", nil)
	sess := decode[sessionResponse](t, raw)
	doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/ops",
		[]map[string]any{{"op": "set_title", "name": "Original"}})

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/save", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: %d %s", resp.StatusCode, raw)
	}

	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/sessions/"+sess.ID+"/save?as=copy", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save as copy: %d %s", resp.StatusCode, raw)
	}
	copyResp := decode[struct {
		Result struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"result"`
	}](t, raw)
	if copyResp.Result.Title != "Original copy" {
		t.Fatalf("copy title = %q", copyResp.Result.Title)
	}

	_, raw = doJSON(t, http.MethodGet, srv.URL+"/projects/"+copyResp.Result.ID, nil)
	proj := decode[struct {
		IsCopy     bool   `json:"is_copy"`
		OriginalID string `json:"original_id"`
	}](t, raw)
	if !proj.IsCopy || proj.OriginalID == "" {
		t.Fatalf("copy metadata = %+v", proj)
	}
}

func TestAssetUploadAck(t *testing.T) {
	srv := newTestServer(t, false, "")

	data := []byte("asset content")
	sum := checksum.MD5(data)
	resp, err := http.Post(srv.URL+"/assets/sound/"+sum+".wav", "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status: %d %s", resp.StatusCode, raw)
	}
	var ack struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "ok" {
		t.Fatalf("ack = %+v", ack)
	}

	// Wrong claimed id comes back as an in-ack rejection.
	resp, err = http.Post(srv.URL+"/assets/sound/feedfeed.wav", "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	raw, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Status != "error" || ack.Code != "ChecksumMismatch" {
		t.Fatalf("ack = %+v", ack)
	}
}

func TestBackpackEndpoints(t *testing.T) {
	srv := newTestServer(t, false, "")

	item := map[string]any{
		"type":      "costume",
		"name":      "hat",
		"body":      "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")),
		"thumbnail": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("thumb")),
	}
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/backpack", item)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("save item: %d %s", resp.StatusCode, raw)
	}
	saved := decode[struct {
		ID string `json:"id"`
	}](t, raw)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/backpack?limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	page := decode[struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	}](t, raw)
	if page.Total != 1 || page.HasMore {
		t.Fatalf("page = %+v", page)
	}

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/backpack/"+saved.ID+"/body", nil)
	if resp.StatusCode != http.StatusOK || string(raw) != "png" {
		t.Fatalf("body: %d %q", resp.StatusCode, raw)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/backpack/"+saved.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
}

func TestAssignmentFlow(t *testing.T) {
	srv := newTestServer(t, false, "")

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/assignments",
		map[string]any{"name": "Build a maze"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, raw)
	}
	a := decode[struct {
		ID string `json:"id"`
	}](t, raw)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/assignments/"+a.ID+"/assign",
		map[string]any{"user_id": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: %d", resp.StatusCode)
	}

	resp, raw = doJSON(t, http.MethodPost, srv.URL+"/assignments/"+a.ID+"/submissions",
		map[string]any{"project_id": "proj-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: %d %s", resp.StatusCode, raw)
	}
	sub := decode[struct {
		ID string `json:"id"`
	}](t, raw)

	// Duplicate submission conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/assignments/"+a.ID+"/submissions",
		map[string]any{"project_id": "proj-1"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate submit: %d", resp.StatusCode)
	}

	// Freeze, then withdrawal conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/assignments/"+a.ID+"/freeze?frozen=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("freeze: %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/submissions/"+sub.ID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("withdraw frozen: %d", resp.StatusCode)
	}
}
