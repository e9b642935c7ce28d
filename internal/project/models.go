package project

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Render job statuses, mirroring the render machine states that get persisted.
const (
	RenderStatusSubmitting = "submitting"
	RenderStatusRendering  = "rendering"
	RenderStatusSucceeded  = "succeeded"
	RenderStatusFailed     = "failed"
)

type RenderJob struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"project_id"`
	RemoteJobID      string    `json:"remote_job_id,omitempty"`
	Status           string    `json:"status"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	FPS              int       `json:"fps"`
	DurationInFrames int       `json:"duration_in_frames"`
	AssetRef         string    `json:"asset_ref,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func NewID() string {
	return uuid.NewString()
}
