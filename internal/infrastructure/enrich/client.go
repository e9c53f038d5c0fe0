package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"LegisImport/internal/ports"
)

// Client talks to the remote deputy registry to verify referenced
// entities. Files flagged to suppress enrichment never reach it.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client

	// cache avoids re-asking the registry about the same deputy within
	// one process lifetime; the registry is effectively append-only.
	cache map[string]bool
}

var _ ports.Enricher = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		cache:    map[string]bool{},
	}
}

// DeputyExists asks the registry whether the deputy id is known.
func (c *Client) DeputyExists(ctx context.Context, deputyID string) (bool, error) {
	if c.http == nil {
		return true, nil
	}
	if known, ok := c.cache[deputyID]; ok {
		return known, nil
	}

	target := fmt.Sprintf("%s/deputies/%s", c.endpoint, url.PathEscape(deputyID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("query deputy %s: %w", deputyID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return false, fmt.Errorf("decode deputy %s: %w", deputyID, err)
		}
		exists := payload.ID != ""
		c.cache[deputyID] = exists
		return exists, nil
	case http.StatusNotFound:
		c.cache[deputyID] = false
		return false, nil
	default:
		return false, fmt.Errorf("deputy registry returned %s", resp.Status)
	}
}
