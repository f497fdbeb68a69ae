// Package httputil centralizes JSON encoding and domain error translation so
// every handler produces the same envelopes.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	derrors "gatehouse/pkg/domain-errors"
)

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error to its HTTP envelope. Internal errors
// omit the description so store failures never leak detail to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := derrors.CodeInternal
	message := ""
	var domainErr *derrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message
	}

	body := map[string]string{"error": string(code)}
	if message != "" && code != derrors.CodeInternal {
		body["error_description"] = message
	}
	WriteJSON(w, ToHTTPStatus(code), body)
}

// WriteForbidden writes the uniform forbidden envelope. Every denied
// authorization check returns exactly this body, leaking nothing about
// whether the capability, scope or resource exists.
func WriteForbidden(w http.ResponseWriter) {
	WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}

// ToHTTPStatus maps domain error codes to HTTP statuses.
func ToHTTPStatus(code derrors.Code) int {
	switch code {
	case derrors.CodeValidation:
		return http.StatusBadRequest
	case derrors.CodeNotFound:
		return http.StatusNotFound
	case derrors.CodeConflict, derrors.CodeInvalidTransition:
		return http.StatusConflict
	case derrors.CodeForbidden:
		return http.StatusForbidden
	case derrors.CodeNotMapped, derrors.CodeInvariantViolation, derrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON request body into T. Unknown fields are
// rejected, so closed record types stay closed at the transport boundary.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, derrors.New(derrors.CodeValidation, "invalid request body"))
		return req, false
	}
	return req, true
}
