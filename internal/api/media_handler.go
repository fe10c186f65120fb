package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-labels/internal/labels"
	"github.com/heimdex/heimdex-labels/internal/logging"
	"github.com/heimdex/heimdex-labels/internal/media"
)

// mediaHandler streams the local file behind one of a cached row's data
// units. ?unit picks the unit by data hash; videos have only one.
func mediaHandler(cfg ServerConfig, streamer *media.Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := chi.URLParam(r, "hash")
		logger := logging.WithLabelHash(cfg.Logger, hash)

		row, err := cfg.Workspace.Open(r.Context(), hash)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		unit, ok := pickUnit(row.Metadata().Units, r.URL.Query().Get("unit"))
		if !ok {
			WriteError(w, http.StatusNotFound, "data unit not found", "NOT_FOUND")
			return
		}

		path, err := media.LocalPath(unit.Link)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, "data unit has no local media", "MEDIA_NOT_LOCAL")
			return
		}

		if err := streamer.Stream(w, r, path); err != nil {
			if errors.Is(err, media.ErrMissing) {
				WriteError(w, http.StatusNotFound, "media file not found", "MEDIA_MISSING")
				return
			}
			logger.Error("media stream failed", "error", err, "path", logging.SanitizePath(path))
			WriteError(w, http.StatusInternalServerError, "failed to stream media", "INTERNAL_ERROR")
		}
	}
}

func pickUnit(units []labels.DataUnit, dataHash string) (labels.DataUnit, bool) {
	if dataHash == "" {
		if len(units) == 0 {
			return labels.DataUnit{}, false
		}
		return units[0], true
	}
	for _, u := range units {
		if u.Hash == dataHash {
			return u, true
		}
	}
	return labels.DataUnit{}, false
}
