package api

import (
	"encoding/json"
	"time"

	"github.com/trykimu/videoeditor-sub001/internal/export"
	"github.com/trykimu/videoeditor-sub001/internal/project"
	"github.com/trykimu/videoeditor-sub001/internal/render"
	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type ErrorResponse struct {
	Error      string              `json:"error"`
	Code       string              `json:"code,omitempty"`
	Issues     []schema.Issue      `json:"issues,omitempty"`
	Violations []ViolationResponse `json:"violations,omitempty"`
}

type ViolationResponse struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// ProjectDetailResponse carries the stored document verbatim plus the values
// a player derives from it.
type ProjectDetailResponse struct {
	Project          ProjectResponse     `json:"project"`
	Document         json.RawMessage     `json:"document"`
	TimelineData     []timeline.ClipData `json:"timelineData"`
	DurationInFrames int                 `json:"durationInFrames"`
	Width            int                 `json:"compositionWidth"`
	Height           int                 `json:"compositionHeight"`
}

type TimelineResponse struct {
	Document json.RawMessage `json:"document"`
}

type ValidateResponse struct {
	Valid      bool                `json:"valid"`
	Violations []ViolationResponse `json:"violations"`
}

type MediaResponse struct {
	Item timeline.MediaBinItem `json:"item"`
}

// UploadUpdateRequest reports upload progress for a media bin item.
type UploadUpdateRequest struct {
	UploadProgress *float64 `json:"uploadProgress"`
	IsUploading    bool     `json:"isUploading"`
	MediaURLLocal  *string  `json:"mediaUrlLocal"`
	MediaURLRemote *string  `json:"mediaUrlRemote"`
}

type AddTrackRequest struct {
	ID string `json:"id,omitempty"`
}

type AddTrackResponse struct {
	ID string `json:"id"`
}

type MoveScrubberRequest struct {
	Left *float64 `json:"left"`
	Y    *int     `json:"y"`
}

// TrimRequest sets both trim bounds; null clears one.
type TrimRequest struct {
	TrimBefore *int `json:"trimBefore"`
	TrimAfter  *int `json:"trimAfter"`
}

type RenderRequest struct {
	CompositionWidth  int `json:"compositionWidth,omitempty"`
	CompositionHeight int `json:"compositionHeight,omitempty"`
}

type RenderJobsResponse struct {
	Jobs []RenderJobResponse `json:"jobs"`
}

type RenderJobResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FPS              int    `json:"fps"`
	DurationInFrames int    `json:"durationInFrames"`
	AssetRef         string `json:"assetRef,omitempty"`
	Error            string `json:"error,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

// ExportResponse is the export result plus, once written, where to fetch it.
type ExportResponse struct {
	*export.Result
	DownloadURL string `json:"downloadUrl,omitempty"`
}

type ExportRequest struct {
	TrackID string `json:"trackId,omitempty"`
	Title   string `json:"title,omitempty"`
	// Write stores the list under the export directory as well.
	Write bool `json:"write,omitempty"`
}

func ProjectToResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func RenderJobToResponse(j *project.RenderJob) RenderJobResponse {
	return RenderJobResponse{
		ID:               j.ID,
		Status:           j.Status,
		Width:            j.Width,
		Height:           j.Height,
		FPS:              j.FPS,
		DurationInFrames: j.DurationInFrames,
		AssetRef:         j.AssetRef,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        j.UpdatedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j render.Job) RenderJobResponse {
	resp := RenderJobResponse{
		ID:               j.ID,
		Status:           string(j.State),
		Width:            j.Width,
		Height:           j.Height,
		FPS:              j.FPS,
		DurationInFrames: j.DurationInFrames,
		AssetRef:         j.AssetRef,
		Error:            j.Error,
	}
	if !j.CreatedAt.IsZero() {
		resp.CreatedAt = j.CreatedAt.Format(time.RFC3339)
		resp.UpdatedAt = j.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
