package proxmox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Proxmox tickets expire after two hours; renew a little early so
// in-flight requests never carry a stale cookie.
const (
	ticketLifetime = 2 * time.Hour
	ticketSlack    = 5 * time.Minute
)

type authTicket struct {
	Ticket    string
	CSRFToken string
	Username  string
	ExpiresAt time.Time
}

func (t *authTicket) valid() bool {
	return t != nil && t.Ticket != "" && time.Now().Before(t.ExpiresAt)
}

// authManager obtains API tickets from /access/ticket and renews them
// transparently once they age out.
type authManager struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	logger   *slog.Logger

	mu     sync.RWMutex
	ticket *authTicket
}

func newAuthManager(client *http.Client, baseURL, username, password string, logger *slog.Logger) *authManager {
	return &authManager{
		client:   client,
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger,
	}
}

// validTicket returns the cached ticket, authenticating first when the
// cache is empty or expired.
func (m *authManager) validTicket(ctx context.Context) (*authTicket, error) {
	m.mu.RLock()
	ticket := m.ticket
	m.mu.RUnlock()

	if ticket.valid() {
		return ticket, nil
	}
	return m.authenticate(ctx)
}

func (m *authManager) authenticate(ctx context.Context) (*authTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have renewed while we waited on the lock.
	if m.ticket.valid() {
		return m.ticket, nil
	}

	form := url.Values{}
	form.Set("username", m.username)
	form.Set("password", m.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/access/ticket", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting ticket: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ticket response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Data struct {
			Ticket              string `json:"ticket"`
			CSRFPreventionToken string `json:"CSRFPreventionToken"`
			Username            string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding ticket response: %w", err)
	}
	if payload.Data.Ticket == "" {
		return nil, errors.New("ticket response carried no ticket")
	}

	m.ticket = &authTicket{
		Ticket:    payload.Data.Ticket,
		CSRFToken: payload.Data.CSRFPreventionToken,
		Username:  payload.Data.Username,
		ExpiresAt: time.Now().Add(ticketLifetime - ticketSlack),
	}
	m.logger.Debug("acquired api ticket",
		slog.String("username", payload.Data.Username),
		slog.Time("expires_at", m.ticket.ExpiresAt),
	)
	return m.ticket, nil
}

// expire drops the cached ticket so the next request re-authenticates.
func (m *authManager) expire() {
	m.mu.Lock()
	m.ticket = nil
	m.mu.Unlock()
}
