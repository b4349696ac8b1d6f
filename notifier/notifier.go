// Package notifier forwards the selector's active-pad change
// notifications to a remote HTTP endpoint, adapted from the teacher's
// exporter package (which POSTs StreamBuffer snapshots the same way).
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// ActivePadChange is the payload posted on every switch.
type ActivePadChange struct {
	PadName  string `json:"pad_name"`
	PadIndex int    `json:"pad_index"`
}

// Notifier posts ActivePadChange events to a remote endpoint.
type Notifier struct {
	baseURL *url.URL
	cli     *http.Client
}

// New creates a Notifier targeting baseURL, mirroring
// exporter.NewExporter's validation shape.
func New(baseURL string, httpCli *http.Client) (*Notifier, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("notifier: empty base URL")
	}
	if httpCli == nil {
		httpCli = http.DefaultClient
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("notifier: invalid base URL: %w", err)
	}
	return &Notifier{baseURL: u, cli: httpCli}, nil
}

// Notify posts one active-pad-change event. Each request carries a freshly
// generated UUID in its Idempotency-Key header. Notify makes a single
// attempt, and a repeated call sends a new key.
func (n *Notifier) Notify(ctx context.Context, ev ActivePadChange) error {
	u := *n.baseURL
	endpoint, err := url.JoinPath(u.String(), "active-pad")
	if err != nil {
		return fmt.Errorf("notifier: invalid base URL: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notifier: could not marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notifier: could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := n.cli.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifier: unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
