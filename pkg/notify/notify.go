package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// Config points at the webhook the presentation layer exposes for artifact
// pickup. URL is optional; an empty URL disables notification entirely.
type Config struct {
	URL     string        `split_words:"true"`
	Token   string        `split_words:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

// Client POSTs newly generated artifacts to the configured webhook. Failures
// are the caller's to log; a missed notification never affects the turn.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		return nil, errors.New("notify url is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type payload struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	Location    string    `json:"location"`
	Fingerprint string    `json:"fingerprint"`
	EmittedAt   time.Time `json:"emitted_at"`
}

func (c *Client) NotifyArtifact(ctx context.Context, userID, sessionID string, artifact contract.Artifact) error {
	body, err := json.Marshal(payload{
		UserID:      userID,
		SessionID:   sessionID,
		Kind:        string(artifact.Kind),
		Location:    artifact.Location,
		Fingerprint: artifact.Fingerprint,
		EmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook returned %d", resp.StatusCode)
	}
	return nil
}

var _ contract.ArtifactNotifier = (*Client)(nil)
