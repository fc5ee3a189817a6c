// Package lookup verifies certifications and searches skills against
// third-party services. Outbound failures degrade to fallback results and
// are never returned to the caller.
package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultCacheTTL = 24 * time.Hour

	maxResponseBytes = 1 << 20
)

// Config holds the outbound settings shared by the lookup services.
type Config struct {
	Client   *http.Client // optional; one with Timeout is created otherwise
	Timeout  time.Duration
	CacheTTL time.Duration

	ESCOURL                 string
	CourseraVerifyURL       string
	MicrosoftCredentialsURL string
}

func (c Config) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c Config) cacheTTL() time.Duration {
	if c.CacheTTL <= 0 {
		return DefaultCacheTTL
	}
	return c.CacheTTL
}

// statusError reports a non-2xx upstream response.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// get issues a GET and returns the status and body of a 2xx response.
// Any other status is an error.
func get(ctx context.Context, client *http.Client, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &statusError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http")
}
