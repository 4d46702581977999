package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes body to w as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// ErrorMsg is the envelope for every error response the service produces.
type ErrorMsg struct {
	Error   string `json:"error"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// NotFound answers r with a 404 naming the requested path.
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, ErrorMsg{
		Error: http.StatusText(http.StatusNotFound),
		Path:  r.URL.Path,
	})
}

// InternalError answers with a 500. The detail message is included only when
// detail is non-empty, which callers must ensure is never the case in
// production mode.
func InternalError(w http.ResponseWriter, detail string) {
	WriteJSON(w, http.StatusInternalServerError, ErrorMsg{
		Error:   http.StatusText(http.StatusInternalServerError),
		Message: detail,
	})
}

// Error answers with an arbitrary status code and the standard text for it.
func Error(w http.ResponseWriter, code int) {
	WriteJSON(w, code, ErrorMsg{Error: http.StatusText(code)})
}
