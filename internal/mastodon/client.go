// Package mastodon is a minimal client for the handful of Mastodon REST
// operations a migration needs: status creation, media upload and status
// deletion, all under shared rate-limit bookkeeping.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/archive-evacuator/internal/config"
	"github.com/rs/zerolog"
)

// NoRemoteID is the sentinel returned when an operation produced no remote
// identifier: every dry-run call, and any item the service rejected as
// unprocessable.
const NoRemoteID = "0"

// StatusParams are the fields of a status creation call.
type StatusParams struct {
	Status      string   `json:"status"`
	MediaIDs    []string `json:"media_ids,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Language    string   `json:"language,omitempty"`
	Sensitive   bool     `json:"sensitive,omitempty"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
}

// Client performs the remote operations. It is not safe for concurrent use;
// the migration is strictly sequential by design.
type Client struct {
	http         *http.Client
	endpoint     string
	token        string
	retries      int
	pollInterval time.Duration
	pollRetries  int
	dryRun       bool
	limits       RateLimit
	sleep        func(time.Duration)
	log          zerolog.Logger
}

// NewClient builds a client from the instance settings. The domain may carry
// an explicit scheme; bare domains get https.
func NewClient(cfg *config.MastodonConfig, log zerolog.Logger) *Client {
	endpoint := cfg.Domain
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	return &Client{
		http:         &http.Client{Timeout: 60 * time.Second},
		endpoint:     endpoint,
		token:        cfg.AccessToken,
		retries:      cfg.RatelimitRetries,
		pollInterval: cfg.MediaPollInterval,
		pollRetries:  cfg.MediaPollRetries,
		dryRun:       cfg.DryRun,
		sleep:        time.Sleep,
		log:          log.With().Str("component", "mastodon-client").Logger(),
	}
}

// Limits returns the rate-limit budget as of the last response.
func (c *Client) Limits() RateLimit {
	return c.limits
}

// VerifyCredentials checks the access token and returns the application name.
func (c *Client) VerifyCredentials(ctx context.Context) (string, error) {
	if c.dryRun {
		return "", nil
	}
	resp, body, err := c.send(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1/apps/verify_credentials", nil)
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("verify_credentials failed: %s: %s", resp.Status, body)
	}
	var app struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &app); err != nil {
		return "", fmt.Errorf("failed to parse verify_credentials response: %w", err)
	}
	return app.Name, nil
}

// CreateStatus publishes one status and returns its remote id. An
// unprocessable status degrades to NoRemoteID so one malformed item does
// not abort a batch.
func (c *Client) CreateStatus(ctx context.Context, params StatusParams) (string, error) {
	if c.dryRun {
		return NoRemoteID, nil
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	resp, body, err := c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v1/statuses", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		c.log.Warn().Str("body", string(body)).Msg("Status rejected as unprocessable")
		return NoRemoteID, nil
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("status creation failed: %s: %s", resp.Status, body)
	}
	return remoteID(body)
}

// UploadMedia submits one attachment and returns its remote media id. The
// service may accept the bytes with 202 while still processing them; the
// upload then polls the media endpoint until processing settles, and keeps
// the id it already has regardless of the poll outcome.
func (c *Client) UploadMedia(ctx context.Context, file io.Reader, filename string) (string, error) {
	if c.dryRun {
		return NoRemoteID, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read media %s: %w", filename, err)
	}
	resp, body, err := c.send(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v2/media", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusUnprocessableEntity {
		c.log.Warn().Str("file", filename).Str("body", string(body)).Msg("Media rejected as unprocessable")
		return NoRemoteID, nil
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("media upload failed: %s: %s", resp.Status, body)
	}
	id, err := remoteID(body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusAccepted {
		c.pollMedia(ctx, id)
	}
	return id, nil
}

// DeleteStatus removes a remote status and returns its id.
func (c *Client) DeleteStatus(ctx context.Context, statusID string) (string, error) {
	if c.dryRun {
		return NoRemoteID, nil
	}
	resp, body, err := c.send(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint+"/api/v1/statuses/"+statusID, nil)
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("status deletion failed: %s: %s", resp.Status, body)
	}
	return remoteID(body)
}

// pollMedia waits for asynchronous media processing. Any response other
// than "still processing" ends the poll; the caller proceeds either way.
func (c *Client) pollMedia(ctx context.Context, mediaID string) {
	for attempt := 0; attempt < c.pollRetries; attempt++ {
		c.sleep(c.pollInterval)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1/media/"+mediaID, nil)
		if err != nil {
			return
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		resp, err := c.http.Do(req)
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.limits = c.limits.fromHeaders(resp.Header, time.Now())
		if resp.StatusCode != http.StatusPartialContent {
			return
		}
		c.log.Info().Str("media_id", mediaID).Msg("Media still processing")
	}
	c.log.Warn().Str("media_id", mediaID).Msg("Media processing poll gave up")
}

// send performs one call under the rate-limit retry policy: every response
// refreshes the budget, a 429 sleeps out the current reset window and
// retries, and exhausting the retry count propagates the failure. The
// request is rebuilt per attempt so consumed bodies cannot leak between
// tries. Transport errors are fatal immediately.
func (c *Client) send(ctx context.Context, build func() (*http.Request, error)) (*http.Response, []byte, error) {
	for attempt := 0; attempt < c.retries; attempt++ {
		req, err := build()
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, nil, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, nil, err
		}

		c.limits = c.limits.fromHeaders(resp.Header, time.Now())

		if resp.StatusCode == http.StatusTooManyRequests {
			c.log.Warn().Dur("sleep", c.limits.Reset).Msg("API rate limit exceeded")
			c.sleep(c.limits.Reset)
			continue
		}
		return resp, body, nil
	}
	return nil, nil, fmt.Errorf("rate limit retries exhausted after %d attempts", c.retries)
}

// remoteID extracts the id field of an API response. Identifiers come back
// as JSON strings but some instances send bare numbers.
func remoteID(body []byte) (string, error) {
	var payload struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse response id: %w", err)
	}
	switch id := payload.ID.(type) {
	case string:
		if id == "" {
			return NoRemoteID, nil
		}
		return id, nil
	case float64:
		return fmt.Sprintf("%.0f", id), nil
	default:
		return NoRemoteID, nil
	}
}
