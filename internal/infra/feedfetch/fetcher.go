// Package feedfetch retrieves raw feed documents over HTTP and normalizes
// them into news items using the gofeed library.
package feedfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultUserAgent = "ThreatWatchBot"

	// maxDocumentBytes bounds how much of a response body is read. Feeds
	// larger than this are malformed or hostile.
	maxDocumentBytes = 4 << 20
)

// Fetcher retrieves raw feed documents over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher using the given HTTP client. Timeout behavior
// belongs to the client; the pipeline does not model its own.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, userAgent: defaultUserAgent}
}

// FetchDocument retrieves the raw document at url. Non-2xx responses are
// errors so they feed the caller's circuit breaker like any network failure.
func (f *Fetcher) FetchDocument(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read feed body: %w", err)
	}
	return string(body), nil
}
