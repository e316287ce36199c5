package websearch

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const maxPageChars = 2500

// FetchPageText downloads a page and returns its visible text, capped at
// 2500 characters. The URL is vetted by GuardURL before any network call.
func FetchPageText(ctx context.Context, rawURL string) (string, error) {
	if err := GuardURL(rawURL); err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 8 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	_, text, err := ParsePage(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch %s: parse: %w", rawURL, err)
	}
	if len(text) > maxPageChars {
		text = text[:maxPageChars] + " …"
	}
	return text, nil
}
