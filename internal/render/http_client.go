package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// HTTPClient talks to a render service over JSON:
//
//	POST {base}/render/jobs        -> {"jobId": "..."}
//	GET  {base}/render/jobs/{id}   -> {"status": "...", "assetRef": "...", "message": "..."}
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	endpoint := c.baseURL + "/render/jobs"
	respBody, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}

	var result submitResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode render response: %w", err)
	}
	if result.JobID == "" {
		return "", fmt.Errorf("render service returned no job id")
	}

	c.logger.Info("render job submitted",
		"job_id", result.JobID,
		"width", req.CompositionWidth,
		"height", req.CompositionHeight,
		"duration_in_frames", req.DurationInFrames,
		"clip_count", len(req.TimelineData),
		"body_bytes", len(body),
	)
	return result.JobID, nil
}

func (c *HTTPClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	endpoint := c.baseURL + "/render/jobs/" + url.PathEscape(jobID)
	respBody, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return JobStatus{}, err
	}

	var st JobStatus
	if err := json.Unmarshal(respBody, &st); err != nil {
		return JobStatus{}, fmt.Errorf("decode render status: %w", err)
	}
	switch st.Phase {
	case PhaseQueued, PhaseRunning, PhaseSucceeded, PhaseFailed:
	default:
		return JobStatus{}, fmt.Errorf("render service returned unknown status %q", st.Phase)
	}
	return st, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ClientError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
