package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// StubClient completes every job locally after a fixed number of polls. It
// backs the service when no render URL is configured.
type StubClient struct {
	logger *slog.Logger
	polls  int

	mu   sync.Mutex
	jobs map[string]int
}

func NewStubClient(polls int, logger *slog.Logger) *StubClient {
	if polls < 1 {
		polls = 1
	}
	return &StubClient{logger: logger, polls: polls, jobs: make(map[string]int)}
}

func (c *StubClient) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	id := uuid.NewString()
	c.mu.Lock()
	c.jobs[id] = 0
	c.mu.Unlock()
	c.logger.Info("render stub: job accepted", "job_id", id, "duration_in_frames", req.DurationInFrames)
	return id, nil
}

func (c *StubClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.jobs[jobID]
	if !ok {
		return JobStatus{}, &ClientError{StatusCode: 404, Body: "unknown job"}
	}
	n++
	c.jobs[jobID] = n
	if n < c.polls {
		return JobStatus{Phase: PhaseRunning}, nil
	}
	return JobStatus{Phase: PhaseSucceeded, AssetRef: fmt.Sprintf("stub://renders/%s.mp4", jobID)}, nil
}
