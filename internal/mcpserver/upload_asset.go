package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/raido/internal/backpack"
	"github.com/starford/raido/internal/checksum"
)

const maxAssetSize = 10 << 20 // 10 MB

type uploadResult struct {
	AssetID    string `json:"assetId"`
	MD5Ext     string `json:"md5ext"`
	AssetType  string `json:"assetType"`
	DataFormat string `json:"dataFormat"`
	Size       int    `json:"size"`
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	assetType, err := req.RequireString("asset_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var data []byte
	var mime string
	if strings.HasPrefix(rawURL, "data:") {
		mime, data, err = backpack.ParseDataURL(rawURL)
	} else {
		data, mime, err = fetchHTTP(rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(data) > maxAssetSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(data), maxAssetSize)), nil
	}

	format := backpack.FormatFor(mime)
	if format == "" {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported MIME type: %s", mime)), nil
	}

	id := checksum.MD5(data)
	ack, err := s.projects.StoreAsset(ctx, assetType, format, data, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store asset: %v", err)), nil
	}
	if ack.Status != "ok" {
		return mcp.NewToolResultError(fmt.Sprintf("upload rejected: %s", ack.Code)), nil
	}

	out, _ := json.Marshal(uploadResult{
		AssetID:    id,
		MD5Ext:     id + "." + format,
		AssetType:  assetType,
		DataFormat: format,
		Size:       len(data),
	})
	return mcp.NewToolResultText(string(out)), nil
}

// fetchHTTP downloads a file from an HTTP/HTTPS URL with security checks.
func fetchHTTP(rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}

	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}

	resp, err := client.Get(rawURL) //nolint:noctx
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxAssetSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxAssetSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", maxAssetSize)
	}

	mime := strings.Split(resp.Header.Get("Content-Type"), ";")[0]
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
