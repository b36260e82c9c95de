package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// FeedClient retrieves the JSON results feed over plain HTTP; no browser is
// needed for that path. Retry policy lives in the orchestrator, so the resty
// client itself does not retry.
type FeedClient struct {
	http *resty.Client
}

// NewFeedClient builds a client with the shared user agent.
func NewFeedClient() *FeedClient {
	client := resty.New().
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept", "application/json")
	return &FeedClient{http: client}
}

// Fetch performs one GET. Network errors and 5xx are transient; 4xx means
// the school does not expose the feed and retrying is pointless.
func (c *FeedClient) Fetch(ctx context.Context, t Target) (string, error) {
	if _, err := url.ParseRequestURI(t.URL); err != nil {
		return "", Permanent(fmt.Errorf("malformed url %q: %w", t.URL, err))
	}

	resp, err := c.http.R().SetContext(ctx).Get(t.URL)
	if err != nil {
		return "", fmt.Errorf("feed request: %w", err)
	}
	code := resp.StatusCode()
	switch {
	case code >= 500:
		return "", fmt.Errorf("feed returned %d", code)
	case code >= 400:
		return "", Permanent(fmt.Errorf("feed returned %d", code))
	}
	return resp.String(), nil
}
