// Package proxmox provides a client for the HTTP API of a Proxmox VE node.
package proxmox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/time/rate"
)

const apiBasePath = "/api2/json"

// Client executes API calls against a single Proxmox VE node using
// ticket authentication.
type Client struct {
	http    *http.Client
	baseURL string
	auth    *authManager
	limiter *rate.Limiter
	logger  *slog.Logger

	retries    int
	retryDelay time.Duration
	dryRun     bool
}

// Connect initializes a new client using the provided configuration. It
// authenticates eagerly and probes the API version, so a returned client
// is known to be reachable with working credentials.
func Connect(ctx context.Context, conf ConnConfig, logger *slog.Logger) (*Client, VersionInfo, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !conf.VerifySSL,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   conf.Timeout,
	}

	var limiter *rate.Limiter
	if conf.RateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.RateRPS), max(conf.RateBurst, 1))
	}

	baseURL := conf.Addr() + apiBasePath
	client := &Client{
		http:       httpClient,
		baseURL:    baseURL,
		auth:       newAuthManager(httpClient, baseURL, conf.User, conf.Password, logger),
		limiter:    limiter,
		logger:     logger,
		retries:    conf.Retries,
		retryDelay: conf.RetryDelay,
		dryRun:     conf.DryRun,
	}

	if _, err := client.auth.validTicket(ctx); err != nil {
		return nil, VersionInfo{}, err
	}

	version, err := client.Version(ctx)
	if err != nil {
		return nil, VersionInfo{}, fmt.Errorf("probing api version: %w", err)
	}

	return client, version, nil
}

// Version retrieves the Proxmox VE release running on the host.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var payload struct {
		Data VersionInfo `json:"data"`
	}
	if err := c.getWithRetry(ctx, "/version", &payload); err != nil {
		return VersionInfo{}, err
	}

	return payload.Data, nil
}

// NodeStatus retrieves the live resource usage of a node.
func (c *Client) NodeStatus(ctx context.Context, node string) (NodeStatus, error) {
	var payload struct {
		Data NodeStatus `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/status", url.PathEscape(node))
	if err := c.getWithRetry(ctx, path, &payload); err != nil {
		return NodeStatus{}, err
	}

	return payload.Data, nil
}

// ListGuests retrieves the guests of the given kind on a node, sorted by
// VMID ascending.
func (c *Client) ListGuests(ctx context.Context, node string, kind GuestKind) ([]Guest, error) {
	var payload struct {
		Data []Guest `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/%s", url.PathEscape(node), kind)
	if err := c.getWithRetry(ctx, path, &payload); err != nil {
		return nil, err
	}

	guests := payload.Data
	for i := range guests {
		guests[i].Kind = kind
	}
	slices.SortFunc(guests, func(a, b Guest) int {
		return int(a.VMID) - int(b.VMID)
	})

	return guests, nil
}

// GuestStatus retrieves the current state of a single guest.
func (c *Client) GuestStatus(ctx context.Context, node string, kind GuestKind, vmid GuestID) (Guest, error) {
	var payload struct {
		Data Guest `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/%s/%d/status/current", url.PathEscape(node), kind, vmid)
	if err := c.getWithRetry(ctx, path, &payload); err != nil {
		return Guest{}, err
	}

	guest := payload.Data
	guest.Kind = kind
	if guest.VMID == 0 {
		guest.VMID = vmid
	}

	return guest, nil
}

// GuestAction performs a lifecycle action on a guest and returns the UPID
// of the task the node spawned for it. In dry run mode the action is
// logged and skipped.
func (c *Client) GuestAction(ctx context.Context, node string, kind GuestKind, vmid GuestID, action Action) (string, error) {
	if c.dryRun {
		c.logger.Info("dry run: skipping guest action",
			slog.String("action", string(action)),
			slog.String("kind", string(kind)),
			slog.Int("vmid", int(vmid)),
		)
		return "", nil
	}

	var payload struct {
		Data string `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/%s/%d/status/%s", url.PathEscape(node), kind, vmid, action)
	if err := c.postForm(ctx, path, nil, &payload); err != nil {
		return "", err
	}

	c.logger.Debug("guest action accepted",
		slog.String("action", string(action)),
		slog.Int("vmid", int(vmid)),
		slog.String("upid", payload.Data),
	)

	return payload.Data, nil
}
