package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"repolens/internal/identity"
	"repolens/internal/store"
)

const (
	defaultBaseURL = "https://api.github.com"
	maxBodyBytes   = 1 << 20
)

// Client is a thin wrapper over the GitHub REST API for repository
// metadata. Each lookup is independently memoized through the metadata
// cache; the exploration core never depends on these shapes.
type Client struct {
	HTTP    *http.Client
	Cache   *store.MetaCache
	Token   string
	BaseURL string
}

func NewClient(cache *store.MetaCache, token string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Cache:   cache,
		Token:   token,
		BaseURL: defaultBaseURL,
	}
}

// GetRepoInfo fetches the repository record.
func (c *Client) GetRepoInfo(ctx context.Context, id identity.Identity) (json.RawMessage, error) {
	return c.get(ctx, "info:"+id.Key(), fmt.Sprintf("/repos/%s/%s", id.Owner, id.Name))
}

// GetContributors fetches the top contributors.
func (c *Client) GetContributors(ctx context.Context, id identity.Identity) (json.RawMessage, error) {
	return c.get(ctx, "contributors:"+id.Key(), fmt.Sprintf("/repos/%s/%s/contributors?per_page=10", id.Owner, id.Name))
}

// GetKeyFiles fetches the top-level content listing.
func (c *Client) GetKeyFiles(ctx context.Context, id identity.Identity) (json.RawMessage, error) {
	return c.get(ctx, "files:"+id.Key(), fmt.Sprintf("/repos/%s/%s/contents", id.Owner, id.Name))
}

// GetStats fetches the language byte breakdown.
func (c *Client) GetStats(ctx context.Context, id identity.Identity) (json.RawMessage, error) {
	return c.get(ctx, "stats:"+id.Key(), fmt.Sprintf("/repos/%s/%s/languages", id.Owner, id.Name))
}

// GetIcon fetches the owner record, which carries the avatar URL.
func (c *Client) GetIcon(ctx context.Context, id identity.Identity) (json.RawMessage, error) {
	return c.get(ctx, "icon:"+id.Owner, "/users/"+id.Owner)
}

func (c *Client) get(ctx context.Context, cacheKey, path string) (json.RawMessage, error) {
	if c.Cache != nil {
		if data, ok := c.Cache.Get(cacheKey); ok {
			return data, nil
		}
	}

	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("github: read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github: %s returned %d", path, resp.StatusCode)
	}

	if c.Cache != nil {
		c.Cache.Set(cacheKey, body)
	}
	return body, nil
}
