package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/ahamlinman/webglhost/internal/api"
)

type bodyError struct {
	HTTPCode int
	Message  string
}

func (b bodyError) Error() string { return b.Message }

var (
	errReadingBody  = bodyError{http.StatusBadRequest, "unable to read request body"}
	errBodyTooLarge = bodyError{http.StatusRequestEntityTooLarge, "request body exceeded maximum size"}
	errInvalidJSON  = bodyError{http.StatusBadRequest, "unable to decode JSON request body"}
	errInvalidForm  = bodyError{http.StatusBadRequest, "unable to decode form request body"}
)

type jsonBodyKey struct{}

// JSONBody returns the JSON body of r, as parsed by the body parsing
// middleware, or nil if the request did not carry one.
func JSONBody(r *http.Request) json.RawMessage {
	body, _ := r.Context().Value(jsonBodyKey{}).(json.RawMessage)
	return body
}

// parseBody decodes JSON and URL-encoded request bodies ahead of the handler.
// The size of the body must already be limited by an http.MaxBytesReader.
//
// A JSON body is validated and made available through JSONBody. A URL-encoded
// body is parsed into r.Form and r.PostForm. Bodies of any other type are left
// untouched.
func parseBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

		var err error
		switch mediaType {
		case "application/json":
			var body json.RawMessage
			body, err = readJSONBody(r)
			if err == nil && body != nil {
				r = r.WithContext(context.WithValue(r.Context(), jsonBodyKey{}, body))
			}
		case "application/x-www-form-urlencoded":
			err = readFormBody(r)
		}

		if err != nil {
			var berr bodyError
			if !errors.As(err, &berr) {
				berr = errReadingBody
			}
			api.WriteJSON(w, berr.HTTPCode, api.ErrorMsg{
				Error:   http.StatusText(berr.HTTPCode),
				Message: berr.Message,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readJSONBody(r *http.Request) (json.RawMessage, error) {
	var body bytes.Buffer
	n, err := body.ReadFrom(r.Body)
	switch {
	case isMaxBytesError(err):
		return nil, errBodyTooLarge
	case err != nil:
		return nil, errReadingBody
	case n == 0:
		return nil, nil
	}

	if !json.Valid(body.Bytes()) {
		return nil, errInvalidJSON
	}
	return json.RawMessage(body.Bytes()), nil
}

func readFormBody(r *http.Request) error {
	err := r.ParseForm()
	switch {
	case isMaxBytesError(err):
		return errBodyTooLarge
	case err != nil:
		return errInvalidForm
	}
	return nil
}

func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
