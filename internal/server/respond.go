package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/embershare/ember/internal/logging"
	"github.com/embershare/ember/internal/models"
	"github.com/embershare/ember/internal/share"
	"github.com/embershare/ember/internal/throttle"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// respondError maps service errors onto the wire. Throttle blocks become
// 429 with a Retry-After hint, integrity failures surface the hash
// report, StatusError carries its own code, and anything else is an
// opaque 500 logged with the request id.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var blocked *throttle.BlockedError
	if errors.As(err, &blocked) {
		w.Header().Set("Retry-After", strconv.FormatInt(blocked.RetryAfterSeconds, 10))
		writeJSON(w, http.StatusTooManyRequests, models.ThrottledResponse{
			Detail:            "Too many failed attempts. Try again later.",
			RetryAfterSeconds: blocked.RetryAfterSeconds,
		})
		return
	}

	var integrity *share.IntegrityError
	if errors.As(err, &integrity) {
		writeJSON(w, http.StatusInternalServerError, models.IntegrityErrorResponse{
			Detail: models.IntegrityDetail{
				ErrorCode: "INTEGRITY_CHECK_FAILED",
				IntegrityReport: models.IntegrityReport{
					Expected: integrity.Expected,
					Actual:   integrity.Actual,
				},
			},
		})
		return
	}

	var status *share.StatusError
	if errors.As(err, &status) {
		writeError(w, status.Status, status.Detail)
		return
	}

	logging.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
