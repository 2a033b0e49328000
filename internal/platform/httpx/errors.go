package httpx

import (
	"errors"
	"net/http"
)

// Sentinels the handlers wrap domain errors with before calling RespondError.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrUnprocessable = errors.New("unprocessable")
)

var statusTable = []struct {
	err    error
	status int
	title  string
}{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrEmptyBody, http.StatusBadRequest, "Invalid JSON"},
	{ErrUnprocessable, http.StatusUnprocessableEntity, "Unprocessable"},
}

// StatusFor returns the HTTP status and title mapped to err.
func StatusFor(err error) (int, string) {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status, entry.title
		}
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps err to an RFC7807 response. Internal errors carry no detail.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}
