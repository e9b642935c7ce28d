// Package render submits timelines to the render service and tracks each
// submission until it finishes.
package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

// Client is the render service contract. Submit returns the service's job id.
type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
}

// SubmitRequest is the body sent to the render service.
type SubmitRequest struct {
	Snapshot          json.RawMessage     `json:"snapshot"`
	TimelineData      []timeline.ClipData `json:"timelineData"`
	CompositionWidth  int                 `json:"compositionWidth"`
	CompositionHeight int                 `json:"compositionHeight"`
	FPS               int                 `json:"fps"`
	DurationInFrames  int                 `json:"durationInFrames"`
}

type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// JobStatus is one poll result. AssetRef is set on success, Message on failure.
type JobStatus struct {
	Phase    Phase  `json:"status"`
	AssetRef string `json:"assetRef,omitempty"`
	Message  string `json:"message,omitempty"`
	Progress *int   `json:"progress,omitempty"`
}

// ClientError is a non-2xx answer from the render service.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("render service: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors and throttling. Other client
// errors are permanent.
func (e *ClientError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
