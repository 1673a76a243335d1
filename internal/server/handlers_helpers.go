package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

// maxBodyBytes bounds request bodies; prompts are text.
const maxBodyBytes = 1 << 20

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    *int   `json:"code,omitempty"`
}

// decodeJSON reads r's body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Wrap(apperrors.CodeValidationInvalidJSON, "Request body too large", err)
		}
		return apperrors.InvalidJSON(err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.InvalidJSON(err)
	}
	return nil
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes {success:false, error} with the status derived from err.
func writeJSONError(w http.ResponseWriter, err error) {
	_, msg := errorCodeAndMessage(err)
	writeJSON(w, apperrors.HTTPStatus(err), errorResponse{Error: msg})
}

// errorCodeAndMessage returns the error code and the message shown to users.
// Unclassified errors are reported as internal.
func errorCodeAndMessage(err error) (string, string) {
	code, msg := apperrors.ToCodeAndMessage(err)
	if code == apperrors.CodeUnknown {
		return apperrors.CodeInternal, "Internal server error"
	}
	return code, msg
}

func intPtr(n int) *int {
	return &n
}
