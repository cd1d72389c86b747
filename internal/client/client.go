// Package client talks to a Heimdex editor agent over HTTP. It is what the
// terminal editor uses to load and save cuts.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
)

// RequestError is a non-2xx answer from the agent.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent. Nothing in this package retries on its own.
func (e *RequestError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// Media is the summary of a registered recording.
type Media struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DurationMs int64  `json:"duration_ms"`
}

// Job is the state of a workflow run.
type Job struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress int      `json:"progress"`
	Outputs  []string `json:"outputs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ editor.Saver = (*Client)(nil)

func New(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Load fetches the editor document of a media item.
func (c *Client) Load(ctx context.Context, mediaID string) (editor.LoadResponse, error) {
	var resp editor.LoadResponse
	err := c.do(ctx, http.MethodGet, mediaPath(mediaID, "editor.json"), nil, &resp)
	return resp, err
}

// Save posts a cut for a media item.
func (c *Client) Save(ctx context.Context, mediaID string, req editor.SaveRequest) (editor.SaveResult, error) {
	var res editor.SaveResult
	err := c.do(ctx, http.MethodPost, mediaPath(mediaID, "editor.json"), req, &res)
	if err == nil {
		c.logger.Info("cut saved", "media_id", mediaID, "cut_id", res.CutID, "job_id", res.JobID)
	}
	return res, err
}

func (c *Client) GetMedia(ctx context.Context, mediaID string) (Media, error) {
	var m Media
	err := c.do(ctx, http.MethodGet, mediaPath(mediaID, ""), nil, &m)
	return m, err
}

func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var j Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &j)
	return j, err
}

func mediaPath(mediaID, rest string) string {
	p := "/api/media/" + url.PathEscape(mediaID)
	if rest != "" {
		p += "/" + rest
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("agent request", "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("agent request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"request_id", requestID,
		)
		return &RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
