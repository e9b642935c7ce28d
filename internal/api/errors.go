package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/trykimu/videoeditor-sub001/internal/editor"
	"github.com/trykimu/videoeditor-sub001/internal/schema"
	"github.com/trykimu/videoeditor-sub001/internal/snapshot"
	"github.com/trykimu/videoeditor-sub001/internal/timeline"
)

// writeServiceError maps an editor error onto a status code and body.
//
//	schema.ValidationError      400 with issues
//	unknown project or entity   404
//	render already running      409
//	timeline invariant broken   422 with violations
//	render service failure      502
//	storage unavailable         503
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid request",
			Code:   "VALIDATION_FAILED",
			Issues: verr.Issues,
		})
		return
	}

	var violations timeline.Violations
	if errors.As(err, &violations) {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      violations.Error(),
			Code:       "TIMELINE_INVALID",
			Violations: violationsToResponse(violations),
		})
		return
	}

	if errors.Is(err, editor.ErrProjectNotFound) {
		WriteError(w, http.StatusNotFound, "project not found", "NOT_FOUND")
		return
	}

	var terr *timeline.Error
	if errors.As(err, &terr) {
		WriteJSON(w, timelineStatus(terr), ErrorResponse{
			Error:      terr.Error(),
			Code:       string(terr.Code),
			Violations: violationsToResponse(timeline.Violations{terr}),
		})
		return
	}

	if errors.Is(err, snapshot.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		logger.Error("storage unavailable", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "storage unavailable", "UNAVAILABLE")
		return
	}

	logger.Error("request failed", "error", err)
	WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

func timelineStatus(e *timeline.Error) int {
	switch e.Kind() {
	case timeline.KindConcurrency:
		return http.StatusConflict
	case timeline.KindExternal:
		return http.StatusBadGateway
	case timeline.KindInvariant:
		return http.StatusUnprocessableEntity
	case timeline.KindReferentialIntegrity:
		switch e.Code {
		case timeline.CodeReferencedByScrubber, timeline.CodeReferencedByTransition:
			return http.StatusConflict
		}
		return http.StatusNotFound
	case timeline.KindValidation:
		if e.Code == timeline.CodeDuplicateID {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func violationsToResponse(v timeline.Violations) []ViolationResponse {
	out := make([]ViolationResponse, len(v))
	for i, e := range v {
		out[i] = ViolationResponse{
			Kind:    string(e.Kind()),
			Code:    string(e.Code),
			Message: e.Message,
			Path:    e.Path,
		}
	}
	return out
}
