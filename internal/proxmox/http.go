package proxmox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const userAgent = "pvemon"

// APIError is a non-2xx response from the Proxmox API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("proxmox api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("proxmox api: status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// getWithRetry repeats transient failures with a linearly growing delay,
// matching the polling loop's tolerance for flaky nodes.
func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				slog.String("path", path),
				slog.Int("attempt", attempt),
			)
			select {
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := c.get(ctx, path, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("request failed after %d retries: %w", c.retries, lastErr)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	ticket, err := c.auth.validTicket(ctx)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: "PVEAuthCookie", Value: ticket.Ticket})
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("CSRFPreventionToken", ticket.CSRFToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			// Ticket revoked server-side; force a fresh one next time.
			c.auth.expire()
		}
		return fmt.Errorf("%s %s: %w", method, path,
			&APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

// isRetryable reports whether err is worth another attempt: gateway-side
// 5xx statuses, an expired ticket, timeouts and refused connections.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
