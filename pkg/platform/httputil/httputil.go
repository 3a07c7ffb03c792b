package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "tracevault/pkg/domain-errors"
)

// ErrorBody is the wire shape of every failure response. The name is the
// stable error kind; details carry per-field validation messages when
// present. Internal identifiers and stack traces never appear here.
type ErrorBody struct {
	Name    string   `json:"name"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	// The response body may be incomplete, but headers are already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes
// and the structured error envelope.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), errorEnvelope{
			Error: ErrorBody{
				Name:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			},
		})
		return
	}

	// Fallback for unexpected errors; the underlying message stays server-side.
	WriteJSON(w, http.StatusInternalServerError, errorEnvelope{
		Error: ErrorBody{
			Name:    string(dErrors.CodeInternal),
			Message: "internal error",
		},
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeMalformedToken:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeDuplicateKey:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeResolution:
		// The claimed identity could not be resolved; from the caller's view
		// the request is not satisfiable as presented.
		return http.StatusUnprocessableEntity
	case dErrors.CodeResolutionTimeout, dErrors.CodeBlobTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeBlobNotFound, dErrors.CodeChainCorruption:
		// Store divergence is a server-side integrity failure, not user error.
		return http.StatusInternalServerError
	case dErrors.CodeStorage, dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
