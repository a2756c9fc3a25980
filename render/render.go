// Package render writes JSON response bodies and the machine-readable error
// envelope shared by every Refract failure response.
package render

import (
	"encoding/json"
	"net/http"
)

// JSON renders a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// NoContent renders an empty 204 response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
