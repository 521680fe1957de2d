package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/storage"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

type errorBody struct {
	Error string `json:"error"`
}

var errBadRequest = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes. Store failures are
// classified before validation so that bad stored data is not blamed on the
// request.
func statusFor(err error) int {
	var storeErr *services.StoreError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAlreadyPaid), errors.Is(err, services.ErrNotPaid):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorTypeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return log.ErrorTypeValidation
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusTooManyRequests:
		return log.ErrorTypeRateLimit
	case http.StatusBadGateway:
		return log.ErrorTypeStore
	default:
		return log.ErrorTypeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	fields := log.NewFields().
		WithHTTPRequest(r.Method, r.URL.Path).
		WithError(err, errorTypeFor(status))
	fields[log.FieldStatusCode] = status

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.FromContext(r.Context()).Log(r.Context(), level, "Request failed", fields.ToSlice()...)
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeJSON reads a single JSON object into v. Validation errors raised by
// field decoders (amounts, dates) are kept; anything else is a bad request.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// periodParam reads ?period=all|YYYY-MM; absent means all time.
func periodParam(r *http.Request) (core.Period, error) {
	return core.ParsePeriod(r.URL.Query().Get("period"))
}
