package render

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refractio/refract/validation"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusTeapot, map[string]string{"kind": "teapot"})

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	if body := decode(t, w); body["kind"] != "teapot" {
		t.Errorf("body = %v", body)
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
}

func TestValidationError(t *testing.T) {
	errs := validation.NewErrors()
	errs.Add("stock", "must be at least 10")
	errs.Add("name", "is required")
	errs.AddObject("ends before it starts")

	w := httptest.NewRecorder()
	ValidationError(w, errs)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["code"] != CodeValidationFailed {
		t.Errorf("code = %v", body["code"])
	}
	fields := body["fields"].(map[string]interface{})
	if len(fields) != 3 {
		t.Errorf("fields = %v, want every failing key in one response", fields)
	}
	if _, ok := fields[validation.NonFieldKey]; !ok {
		t.Error("object-level errors belong under the reserved key")
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		status  int
		code    string
		message string
	}{
		{"not found default message", func(w http.ResponseWriter) { NotFound(w, "") },
			http.StatusNotFound, CodeNotFound, "Resource not found"},
		{"not found custom message", func(w http.ResponseWriter) { NotFound(w, "no such album") },
			http.StatusNotFound, CodeNotFound, "no such album"},
		{"permission denied", func(w http.ResponseWriter) { PermissionDenied(w, "") },
			http.StatusForbidden, CodePermissionDenied, "Permission denied"},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "state transition not allowed") },
			http.StatusConflict, CodeConflict, "state transition not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "invalid JSON body") },
			http.StatusBadRequest, CodeBadRequest, "invalid JSON body"},
		{"internal error", func(w http.ResponseWriter) { InternalError(w) },
			http.StatusInternalServerError, CodeInternalError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := decode(t, w)
			if body["code"] != tt.code {
				t.Errorf("code = %v, want %v", body["code"], tt.code)
			}
			if body["message"] != tt.message {
				t.Errorf("message = %v, want %v", body["message"], tt.message)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	MethodNotAllowed(w, []string{http.MethodGet, http.MethodPost})

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "GET, POST" {
		t.Errorf("Allow = %q", allow)
	}

	// Without a method list the header is omitted.
	w = httptest.NewRecorder()
	MethodNotAllowed(w, nil)
	if allow := w.Header().Get("Allow"); allow != "" {
		t.Errorf("Allow = %q, want empty", allow)
	}
}
