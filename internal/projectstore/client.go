package projectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/raido/internal/saver"
)

// Client implements the project store contract against a remote workshop
// server's HTTP API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient creates a client for the server at base (e.g.
// "http://localhost:8484"). token is sent as a bearer credential when
// non-empty.
func NewClient(base, token string) *Client {
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

var _ saver.Store = (*Client)(nil)

func (c *Client) CreateProject(ctx context.Context, snapshot []byte, params saver.SaveParams) (*saver.SaveResult, error) {
	u := c.base + "/api/v1/projects" + encodeParams(params)
	return c.submit(ctx, http.MethodPost, u, snapshot)
}

func (c *Client) UpdateProject(ctx context.Context, id string, snapshot []byte, params saver.SaveParams) (*saver.SaveResult, error) {
	u := c.base + "/api/v1/projects/" + url.PathEscape(id) + encodeParams(params)
	return c.submit(ctx, http.MethodPut, u, snapshot)
}

func (c *Client) submit(ctx context.Context, method, u string, snapshot []byte) (*saver.SaveResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("projectstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("projectstore: submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("projectstore: submit: %s", readError(resp))
	}
	var res saver.SaveResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("projectstore: decode result: %w", err)
	}
	if res.ID == "" {
		return nil, fmt.Errorf("projectstore: server returned no project id")
	}
	return &res, nil
}

// StoreAsset uploads one asset blob. A 2xx response always carries an
// acknowledgment; rejections travel in the ack, transport failures as
// errors.
func (c *Client) StoreAsset(ctx context.Context, assetType, dataFormat string, data []byte, id string) (saver.Ack, error) {
	u := fmt.Sprintf("%s/api/v1/assets/%s/%s.%s",
		c.base, url.PathEscape(assetType), url.PathEscape(id), url.PathEscape(dataFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return saver.Ack{}, fmt.Errorf("projectstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return saver.Ack{}, fmt.Errorf("projectstore: store asset %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return saver.Ack{}, fmt.Errorf("projectstore: store asset %s: %s", id, readError(resp))
	}
	var ack saver.Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return saver.Ack{}, fmt.Errorf("projectstore: decode ack: %w", err)
	}
	return ack, nil
}

func (c *Client) StoreThumbnail(ctx context.Context, projectID string, data []byte) error {
	u := c.base + "/api/v1/projects/" + url.PathEscape(projectID) + "/thumbnail"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("projectstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("projectstore: store thumbnail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("projectstore: store thumbnail: %s", readError(resp))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func encodeParams(p saver.SaveParams) string {
	q := url.Values{}
	if p.Title != "" {
		q.Set("title", p.Title)
	}
	if p.OwnerID != "" {
		q.Set("owner_id", p.OwnerID)
	}
	if p.OriginalID != "" {
		q.Set("original_id", p.OriginalID)
	}
	if p.IsCopy {
		q.Set("is_copy", strconv.FormatBool(true))
	}
	if p.IsRemix {
		q.Set("is_remix", strconv.FormatBool(true))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// readError extracts a short diagnostic from a non-2xx response.
func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return resp.Status
	}
	return resp.Status + ": " + msg
}
