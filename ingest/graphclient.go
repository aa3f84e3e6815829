package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	graphBaseURL      = "https://graph.facebook.com/v19.0"
	graphFetchTimeout = 5 * time.Second
)

// GraphClient fetches enrichment data from the Meta Graph API. It is a
// read-only, single-purpose client in the same single-call shape as
// destination.Client: one request, a hard deadline, no retry — enrichment
// failures are logged and skipped, never retried inline.
type GraphClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGraphClient builds a GraphClient against the production Graph API
// host.
func NewGraphClient() *GraphClient {
	return &GraphClient{httpClient: &http.Client{}, baseURL: graphBaseURL}
}

// FetchLead retrieves the full lead object for leadgenID using accessToken,
// returning it as a generic JSON value tree for the Mapping Engine to
// consume alongside the webhook's own payload.
func (c *GraphClient) FetchLead(ctx context.Context, leadgenID, accessToken string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, graphFetchTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s?access_token=%s", c.baseURL, url.PathEscape(leadgenID), url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building graph api request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling graph api: %w", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding graph api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("graph api returned status %d", resp.StatusCode)
	}
	return body, nil
}
