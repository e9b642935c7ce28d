package api

import (
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/trykimu/videoeditor-sub001/internal/download"
	"github.com/trykimu/videoeditor-sub001/internal/export"
)

// exportEDLHandler renders one track as an edit decision list. The list is
// always returned in the body; with write=true it is also stored in the
// export directory.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		id, ok := projectID(w, r)
		if !ok {
			return
		}

		p, tl, err := cfg.Editor.GetProject(r.Context(), userID(r), id)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}

		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = export.SanitizeName(p.Name, 120)
		}

		res, err := export.FromTimeline(tl, req.TrackID, title)
		if err != nil {
			writeServiceError(w, cfg.Logger, err)
			return
		}
		if res.EventCount == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "track has no exportable clips", "NOTHING_TO_EXPORT")
			return
		}

		resp := ExportResponse{Result: res}
		if req.Write {
			if cfg.ExportDir == "" {
				WriteError(w, http.StatusBadRequest, "export directory is not configured", "BAD_REQUEST")
				return
			}
			if err := export.WriteFile(cfg.ExportDir, res); err != nil {
				cfg.Logger.Error("failed to write EDL", "project_id", id, "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to write EDL", "INTERNAL_ERROR")
				return
			}
			cfg.Logger.Info("EDL written", "project_id", id, "path", res.OutputPath, "events", res.EventCount)
			resp.DownloadURL = "/exports/" + url.PathEscape(filepath.Base(res.OutputPath))
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

// downloadExportHandler serves a previously written export by file name.
func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	dir := download.NewDir(cfg.ExportDir, cfg.Logger)
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.ExportDir == "" {
			WriteError(w, http.StatusNotFound, "exports are not enabled", "NOT_FOUND")
			return
		}
		name := chi.URLParam(r, "name")
		if err := dir.Serve(w, r, name); err != nil {
			cfg.Logger.Error("failed to serve export", "file", name, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to serve export", "INTERNAL_ERROR")
		}
	}
}
