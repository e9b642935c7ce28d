package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trykimu/videoeditor-sub001/internal/auth"
	"github.com/trykimu/videoeditor-sub001/internal/render"
	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

const maxBodyBytes = 8 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Resolver, cfg.Logger))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Patch("/", patchProjectHandler(cfg))
			r.Delete("/", deleteProjectHandler(cfg))

			r.Get("/timeline", getTimelineHandler(cfg))
			r.Put("/timeline", putTimelineHandler(cfg))
			r.Get("/timeline/validate", validateHandler(cfg))

			r.Post("/media", addMediaHandler(cfg))
			r.Patch("/media/{mediaID}", updateMediaHandler(cfg))
			r.Delete("/media/{mediaID}", removeMediaHandler(cfg))

			r.Post("/tracks", addTrackHandler(cfg))
			r.Delete("/tracks/{trackID}", removeTrackHandler(cfg))
			r.Post("/tracks/{trackID}/scrubbers", placeScrubberHandler(cfg))
			r.Patch("/tracks/{trackID}/scrubbers/{scrubberID}", moveScrubberHandler(cfg))
			r.Post("/tracks/{trackID}/transitions", addTransitionHandler(cfg))

			r.Put("/scrubbers/{scrubberID}/trim", trimScrubberHandler(cfg))
			r.Delete("/scrubbers/{scrubberID}", removeScrubberHandler(cfg))
			r.Delete("/transitions/{transitionID}", removeTransitionHandler(cfg))

			r.Post("/render", renderHandler(cfg))
			r.Get("/render", renderStatusHandler(cfg))
			r.Get("/render/jobs", renderJobsHandler(cfg))

			r.Post("/export/edl", exportEDLHandler(cfg))
		})

		r.Get("/exports/{name}", downloadExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", "BAD_REQUEST")
			return nil, false
		}
		WriteError(w, http.StatusBadRequest, "failed to read request body", "BAD_REQUEST")
		return nil, false
	}
	return data, true
}

// decodeBody decodes a small JSON body. Unknown members are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

func userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

// projectID returns the validated {id} path parameter.
func projectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := schema.ValidateID(id, "id"); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid project id", Code: "BAD_REQUEST", Issues: issuesOf(err)})
		return "", false
	}
	return id, true
}

func issuesOf(err error) []schema.Issue {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}

func writeDocument(cfg ServerConfig, w http.ResponseWriter, status int, tl *timeline.Timeline) {
	doc, err := snapshot.Serialize(tl)
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return
	}
	WriteJSON(w, status, TimelineResponse{Document: doc})
}

// mutate runs fn against the project's timeline and answers with the new
// document.
func mutate(cfg ServerConfig, w http.ResponseWriter, r *http.Request, status int, fn func(*timeline.Timeline) error) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	tl, err := cfg.Editor.Mutate(r.Context(), userID(r), id, fn)
	if err != nil {
		writeServiceError(w, cfg.Logger, err)
		return
	}
	writeDocument(cfg, w, status, tl)
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Editor.ListProjects(r.Context(), userID(r))
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		body, err := schema.ParseCreateProject(raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		p, err := cfg.Editor.CreateProject(r.Context(), userID(r), body.Name)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, ProjectToResponse(p))
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		p, tl, err := cfg.Editor.GetProject(r.Context(), userID(r), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		doc, err := snapshot.Serialize(tl)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		width, height := tl.AutoSize()
		WriteJSON(w, http.StatusOK, ProjectDetailResponse{
			Project:          ProjectToResponse(p),
			Document:         doc,
			TimelineData:     tl.TimelineData(),
			DurationInFrames: tl.DurationInFrames(),
			Width:            width,
			Height:           height,
		})
	}
}

// patchProjectHandler renames a project and/or replaces its timeline. The
// timeline part uses the pre-versioned layout {timeline, textBinItems}; the
// timeline is applied first so a rejected timeline leaves the name alone.
func patchProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		body, err := schema.ParsePatchProject(raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		if body.Timeline != nil {
			doc := map[string]json.RawMessage{"timeline": body.Timeline}
			if body.TextBinItems != nil {
				doc["textBinItems"] = body.TextBinItems
			}
			encoded, err := json.Marshal(doc)
			if err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
			if _, err := cfg.Editor.ReplaceTimeline(r.Context(), userID(r), id, encoded); err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
		}

		var resp ProjectResponse
		if body.Name != nil {
			p, err := cfg.Editor.RenameProject(r.Context(), userID(r), id, *body.Name)
			if err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
			resp = ProjectToResponse(p)
		} else {
			p, _, err := cfg.Editor.GetProject(r.Context(), userID(r), id)
			if err != nil {
				writeServiceError(w, cfg.Logger, err)
				return
			}
			resp = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		if err := cfg.Editor.DeleteProject(r.Context(), userID(r), id); err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		_, tl, err := cfg.Editor.GetProject(r.Context(), userID(r), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeDocument(cfg, w, http.StatusOK, tl)
	}
}

// putTimelineHandler replaces the timeline with a full snapshot document.
func putTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		tl, err := cfg.Editor.ReplaceTimeline(r.Context(), userID(r), id, raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		writeDocument(cfg, w, http.StatusOK, tl)
	}
}

func validateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		violations, err := cfg.Editor.Validate(r.Context(), userID(r), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ValidateResponse{
			Valid:      len(violations) == 0,
			Violations: violationsToResponse(violations),
		})
	}
}

func addMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		item, err := schema.ParseMediaBinItem(raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		stored, err := cfg.Editor.AddMedia(r.Context(), userID(r), id, item)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, MediaResponse{Item: stored})
	}
}

func updateMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UploadUpdateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		mediaID := chi.URLParam(r, "mediaID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.UpdateMediaUpload(mediaID, timeline.UploadUpdate{
				Progress:       req.UploadProgress,
				IsUploading:    req.IsUploading,
				MediaURLLocal:  req.MediaURLLocal,
				MediaURLRemote: req.MediaURLRemote,
			})
		})
	}
}

func removeMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID := chi.URLParam(r, "mediaID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.RemoveMediaBinItem(mediaID)
		})
	}
}

func addTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddTrackRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		var trackID string
		_, err := cfg.Editor.Mutate(r.Context(), userID(r), id, func(tl *timeline.Timeline) error {
			var err error
			trackID, err = tl.AddTrack(req.ID)
			return err
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, AddTrackResponse{ID: trackID})
	}
}

func removeTrackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.RemoveTrack(trackID)
		})
	}
}

func placeScrubberHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		s, err := schema.ParseScrubber(raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		trackID := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusCreated, func(tl *timeline.Timeline) error {
			return tl.PlaceScrubber(trackID, s)
		})
	}
}

func moveScrubberHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveScrubberRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Left == nil {
			WriteError(w, http.StatusBadRequest, "left is required", "BAD_REQUEST")
			return
		}
		trackID := chi.URLParam(r, "trackID")
		scrubberID := chi.URLParam(r, "scrubberID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			s, _, ok := tl.Scrubber(scrubberID)
			if !ok {
				return timeline.NewError(timeline.CodeScrubberNotFound, "scrubber %q not found", scrubberID)
			}
			y := s.Y
			if req.Y != nil {
				y = *req.Y
			}
			return tl.MoveScrubber(trackID, scrubberID, *req.Left, y)
		})
	}
}

func addTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := readBody(w, r)
		if !ok {
			return
		}
		tr, err := schema.ParseTransition(raw)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		trackID := chi.URLParam(r, "trackID")
		mutate(cfg, w, r, http.StatusCreated, func(tl *timeline.Timeline) error {
			return tl.AddTransition(trackID, tr)
		})
	}
}

func trimScrubberHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		if !decodeBody(w, r, &req) {
			return
		}
		scrubberID := chi.URLParam(r, "scrubberID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.TrimScrubber(scrubberID, req.TrimBefore, req.TrimAfter)
		})
	}
}

func removeScrubberHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scrubberID := chi.URLParam(r, "scrubberID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.RemoveScrubber(scrubberID)
		})
	}
}

func removeTransitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transitionID := chi.URLParam(r, "transitionID")
		mutate(cfg, w, r, http.StatusOK, func(tl *timeline.Timeline) error {
			return tl.RemoveTransition(transitionID)
		})
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenderRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		if req.CompositionWidth < 0 || req.CompositionHeight < 0 {
			WriteError(w, http.StatusBadRequest, "composition size must not be negative", "BAD_REQUEST")
			return
		}
		id, ok := projectID(w, r)
		if !ok {
			return
		}

		job, err := cfg.Editor.Render(r.Context(), userID(r), id, render.Request{
			Width:  req.CompositionWidth,
			Height: req.CompositionHeight,
		})
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, JobToResponse(job))
	}
}

func renderStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		job, err := cfg.Editor.RenderStatus(r.Context(), userID(r), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func renderJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 100", "BAD_REQUEST")
				return
			}
			limit = n
		}

		jobs, err := cfg.Editor.RenderJobs(r.Context(), userID(r), id, limit)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		resp := RenderJobsResponse{Jobs: make([]RenderJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Jobs[i] = RenderJobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
