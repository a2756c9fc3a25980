package render

import (
	"net/http"

	"github.com/refractio/refract/validation"
)

// Taxonomy codes carried by every failure response
const (
	CodeValidationFailed = "validation_failed"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
	CodePermissionDenied = "permission_denied"
	CodeConflict         = "conflict"
	CodeBadRequest       = "bad_request"
	CodeInternalError    = "internal_error"
)

// ErrorBody is the error envelope: a taxonomy code, a human message, and the
// field-error mapping where applicable. Object-level messages live under the
// reserved non_field_errors key inside Fields.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Error renders a failure response with a taxonomy code
func Error(w http.ResponseWriter, statusCode int, code, message string) {
	JSON(w, statusCode, &ErrorBody{Code: code, Message: message})
}

// ValidationError renders an aggregated field-error response. The mapping is
// always complete: every failing field appears in the one response.
func ValidationError(w http.ResponseWriter, errs *validation.Errors) {
	JSON(w, http.StatusBadRequest, &ErrorBody{
		Code:    CodeValidationFailed,
		Message: "The request contains invalid data",
		Fields:  errs.Fields,
	})
}

// NotFound renders a 404 response
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Resource not found"
	}
	Error(w, http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed renders a 405 response with an Allow header
func MethodNotAllowed(w http.ResponseWriter, allowed []string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", joinMethods(allowed))
	}
	Error(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed")
}

// PermissionDenied renders a 403 response
func PermissionDenied(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Permission denied"
	}
	Error(w, http.StatusForbidden, CodePermissionDenied, message)
}

// Conflict renders a 409 response
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, CodeConflict, message)
}

// BadRequest renders a 400 response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, CodeBadRequest, message)
}

// InternalError renders a 500 response without exposing internals
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}

func joinMethods(methods []string) string {
	out := ""
	for i, m := range methods {
		if i > 0 {
			out += ", "
		}
		out += m
	}
	return out
}
