package httpapi

import (
	"errors"
	"net/http"

	"github.com/icao-pkd/pa-core/pkderr"
)

// statusForError maps a pkderr.Kind's Category to an HTTP status, the
// one place in this module a Kind legitimately drives an HTTP
// response (pkderr itself stays transport-agnostic). Errors that are
// not a *pkderr.Error (a malformed request body, for instance) default
// to 400, since every caller of this helper already sits behind its
// own request-shape validation.
func statusForError(err error) int {
	var pe *pkderr.Error
	if !errors.As(err, &pe) {
		return http.StatusBadRequest
	}
	switch pe.Kind.Category() {
	case pkderr.CategoryParse, pkderr.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
