// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/solvent-hq/solvent/internal/shared"
)

// RespondError maps kernel errors onto RFC7807 responses. Uncoded errors
// never leak their message to the client.
func RespondError(w http.ResponseWriter, err error) {
	var kerr *shared.Error
	if !errors.As(err, &kerr) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	status, title := classify(kerr)
	ProblemWithCode(w, status, title, kerr.Message, kerr.Code, nil)
}

func classify(err *shared.Error) (int, string) {
	switch err.Category {
	case shared.CategoryValidation:
		if strings.HasSuffix(err.Code, "_NOT_FOUND") {
			return http.StatusNotFound, "Not Found"
		}
		return http.StatusBadRequest, "Validation Failed"
	case shared.CategoryConflict:
		return http.StatusConflict, "Conflict"
	case shared.CategoryPolicy:
		return http.StatusConflict, "Policy Blocked"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
