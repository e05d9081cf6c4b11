// Package keyserver implements the optional keyserver-fetch-by-fingerprint
// verification step: a best-effort HTTP GET against a configured keyserver
// base URL. No HKP client exists anywhere in the retrieved example corpus,
// so this is a deliberately thin standard-library net/http client rather
// than an adapted third-party dependency (see DESIGN.md).
package keyserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client fetches raw OpenPGP certificates from an HKP-style keyserver by
// fingerprint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client against baseURL (e.g. "https://keys.example.org").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// FetchByFingerprint implements application/cert.KeyserverClient.
func (c *Client) FetchByFingerprint(ctx context.Context, fingerprintHex string) ([]byte, bool, error) {
	u := fmt.Sprintf("%s/pks/lookup?op=get&options=mr&search=0x%s", c.baseURL, url.QueryEscape(fingerprintHex))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("keyserver: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("keyserver: fetch %s: %w", fingerprintHex, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("keyserver: unexpected status %d for %s", resp.StatusCode, fingerprintHex)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("keyserver: read response: %w", err)
	}
	return body, true, nil
}
