package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error's sentinel
//  4. Error is mapped via core.MapError to get user-friendly message
//  5. Technical error + context is logged with request ID for correlation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/logging"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errNoFile is reported when a multipart request lacks its file part.
var errNoFile = errors.New("no file provided")

// statusMappings pairs sentinels with HTTP status codes. First match wins.
var statusMappings = []struct {
	target error
	status int
}{
	{core.ErrBusy, http.StatusConflict},
	{store.ErrColumnExists, http.StatusConflict},
	{csvio.ErrFormat, http.StatusBadRequest},
	{csvio.ErrNoData, http.StatusUnprocessableEntity},
	{pokeapi.ErrNetwork, http.StatusBadGateway},
	{core.ErrRecordNotFound, http.StatusNotFound},
	{core.ErrColumnNotFound, http.StatusNotFound},
	{core.ErrJobNotFound, http.StatusNotFound},
	{pokemon.ErrInvalidColumn, http.StatusBadRequest},
	{pokemon.ErrUnknownType, http.StatusBadRequest},
	{store.ErrUnknownField, http.StatusBadRequest},
	{store.ErrInvalidFilter, http.StatusBadRequest},
	{core.ErrInvalidRequest, http.StatusBadRequest},
	{errNoFile, http.StatusBadRequest},
}

// statusFor returns the HTTP status for err, 500 when nothing matches.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	for _, m := range statusMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error server-side and writes the mapped
// user message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	respondErrorJSON(w, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
