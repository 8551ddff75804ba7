package api

import (
	"encoding/json"
	"net/http"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/runtime"
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if runtime.IsDiskFullError(err) {
		return http.StatusInsufficientStorage
	}
	return tserrors.Classify(err).HTTPStatus()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes err as an output.ErrorResponse. Server errors are
// logged; their details stay out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg, suggestion := runtime.Describe(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			logging.KeyPath, r.URL.Path,
			logging.KeyError, err)
		msg = http.StatusText(status)
		suggestion = ""
	}
	writeJSON(w, status, output.ErrorResponse{
		Status:     "error",
		Error:      msg,
		Suggestion: suggestion,
	})
}
