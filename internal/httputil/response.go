package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/pkg/logger"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 10 << 20

// Envelope is the success response body.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorBody is the error object inside a failed response.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"traceId,omitempty"`
}

// ErrorEnvelope is the failure response body.
type ErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// WriteErrorResponse writes a failure envelope.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	body := ErrorBody{Code: code, Message: message, Details: details}
	if r != nil {
		body.TraceID = logger.GetTraceID(r.Context())
	}
	WriteJSON(w, status, ErrorEnvelope{Success: false, Error: body})
}

// WriteError converts err into a failure envelope. Errors that are not
// ServiceErrors become 500s; when hideInternal is set their message is
// replaced so internals do not leak.
func WriteError(w http.ResponseWriter, r *http.Request, err error, hideInternal bool) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("", err)
		if !hideInternal && err != nil {
			se.Message = err.Error()
		}
	}
	message := se.Message
	if hideInternal && se.HTTPStatus >= http.StatusInternalServerError && se.Code == errors.CodeInternal {
		message = "Internal Server Error"
	}
	WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), message, se.Details)
}

// DecodeJSON decodes the request body into dst, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := DecodeBody(r, dst); err != nil {
		WriteError(w, r, err, false)
		return false
	}
	return true
}

// DecodeBody decodes a bounded JSON request body into dst.
func DecodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.BadRequest("request body is required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.CodeBadRequest, http.StatusBadRequest, "invalid JSON body")
	}
	return nil
}

// RequireUserID returns the authenticated user ID or writes a 401.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(logger.GetUserID(r.Context()))
	if userID == "" {
		WriteError(w, r, errors.Unauthorized(""), false)
		return "", false
	}
	return userID, true
}
