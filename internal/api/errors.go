package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/heimdex/heimdex-labels/internal/cloud"
	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/workspace"
)

// writeServiceError maps workspace, label-model and cloud errors to a
// status and error code. Located label errors carry their instance and
// frame into the response.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	var loc *labelerr.Location

	var (
		validation  *labelerr.ValidationError
		mismatch    *labelerr.OntologyMismatchError
		geometry    *labelerr.InvalidGeometryError
		conflicting *labelerr.ConflictingAnswerError
		malformed   *labelerr.MalformedLabelError
		interp      *labelerr.InterpolationError
		unsupported *labelerr.UnsupportedShapeError
		apiErr      *cloud.APIError
	)
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, workspace.ErrDirty):
		status, code = http.StatusConflict, "UNSAVED_CHANGES"
	case errors.Is(err, frames.ErrInvalidRange):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	case errors.As(err, &malformed):
		status, code, loc = http.StatusBadRequest, "MALFORMED_LABEL", &malformed.Location
	case errors.As(err, &validation):
		status, code, loc = http.StatusBadRequest, "VALIDATION_ERROR", &validation.Location
	case errors.As(err, &mismatch):
		status, code, loc = http.StatusUnprocessableEntity, "ONTOLOGY_MISMATCH", &mismatch.Location
	case errors.As(err, &geometry):
		status, code, loc = http.StatusUnprocessableEntity, "INVALID_GEOMETRY", &geometry.Location
	case errors.As(err, &conflicting):
		status, code, loc = http.StatusConflict, "CONFLICTING_ANSWER", &conflicting.Location
	case errors.As(err, &interp):
		status, code, loc = http.StatusUnprocessableEntity, "INTERPOLATION_FAILED", &interp.Location
	case errors.As(err, &unsupported):
		status, code, loc = http.StatusUnprocessableEntity, "UNSUPPORTED_SHAPE", &unsupported.Location
	case errors.As(err, &apiErr):
		status, code = http.StatusBadGateway, "UPSTREAM_ERROR"
		if apiErr.StatusCode == http.StatusNotFound {
			status, code = http.StatusNotFound, "NOT_FOUND"
		}
	}

	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "error", err)
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	if loc != nil {
		resp.Instance = loc.Instance
		if loc.Frame != labelerr.NoFrame {
			frame := loc.Frame
			resp.Frame = &frame
		}
	}
	WriteJSON(w, status, resp)
}
