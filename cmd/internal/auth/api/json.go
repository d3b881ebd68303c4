package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Error codes returned in the "error.code" field.
const (
	codeInvalidRequest    = "invalid_request"
	codeUnauthorized      = "unauthorized"
	codeForbidden         = "forbidden"
	codeKeyNotProvisioned = "key_not_provisioned"
	codeServerError       = "server_error"
)

var (
	errEmptyBody     = errors.New("empty body")
	errTrailingInput = errors.New("unexpected data after JSON value")
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeInternal never exposes the underlying cause; callers log it first.
func writeInternal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
}

// decodeJSON reads exactly one JSON value of at most maxBytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errTrailingInput
	}
	return nil
}
