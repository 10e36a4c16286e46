// internal/infra/vsb/client.go
package vsb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seat_monitor_bot/internal/domain/upstream"
	"seat_monitor_bot/internal/infra/config"
)

const refererURL = "https://w2prod.sis.yorku.ca/Apps/WebObjects/cdm"

// loginMarkers are substrings whose presence in an HTML body means the
// upstream served its login page instead of the seat document.
var loginMarkers = []string{"passport york", "duo", "login"}

// Client fetches the seat-status XML from the VSB XHR endpoint. It holds a
// reusable http.Client for connection pooling but no mutable business state
// between fetches.
type Client struct {
	cfg        *config.AppConfig
	httpClient *http.Client
	sleep      func(time.Duration) // Replaceable in tests to observe backoffs
}

func NewClient(cfg *config.AppConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		sleep: time.Sleep,
	}
}

// FetchXML performs the authenticated fetch with bounded retries and linear
// backoff. Session expiry (HTTP 401/403 or a login page body) short-circuits
// all remaining attempts; transient failures retry up to the configured
// maximum and the last one is surfaced with the attempt count.
func (c *Client) FetchXML(ctx context.Context) (string, error) {
	if c.cfg.VsbXhrURL == "" {
		return "", fmt.Errorf("%w: VSB_XHR_URL is not set", upstream.ErrNotConfigured)
	}
	if c.cfg.VsbCookieHeader == "" {
		return "", fmt.Errorf("%w: VSB_COOKIE_HEADER is empty; login session is missing", upstream.ErrSessionExpired)
	}

	maxRetries := c.cfg.RequestMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, err := c.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, upstream.ErrSessionExpired) {
			return "", err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		c.sleep(time.Duration(c.cfg.RequestRetryBackoffSeconds*attempt) * time.Second)
	}

	return "", fmt.Errorf("%w: request failed after %d attempts: %v", upstream.ErrFetchFailed, maxRetries, lastErr)
}

// fetchOnce performs a single attempt and classifies the outcome: a nil
// error is success, ErrSessionExpired is fatal, anything else is retryable.
func (c *Client) fetchOnce(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.VsbXhrURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", upstream.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/xml,text/xml,*/*;q=0.1")
	req.Header.Set("User-Agent", c.cfg.VsbUserAgent)
	req.Header.Set("Cookie", c.cfg.VsbCookieHeader)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", refererURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", upstream.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: received HTTP %d from VSB", upstream.ErrSessionExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected HTTP status %d", upstream.ErrFetchFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %v", upstream.ErrFetchFailed, err)
	}
	body := strings.TrimSpace(string(raw))

	if isLoginPage(body) {
		return "", fmt.Errorf("%w: VSB returned login page; session is expired", upstream.ErrSessionExpired)
	}
	if !strings.HasPrefix(body, "<") {
		return "", fmt.Errorf("%w: response is not XML-like", upstream.ErrFetchFailed)
	}

	return body, nil
}

func isLoginPage(body string) bool {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "<html") {
		return false
	}
	for _, marker := range loginMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
