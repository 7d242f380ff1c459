package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/navindex/graph"
	"github.com/aukilabs/navindex/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest       = "bad-request"
	ErrTypeMutationDisabled = "mutation-disabled"
)

type errorResponse struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// StatusCode returns the HTTP status code matching the type of err.
func StatusCode(err error) int {
	switch errors.Type(err) {
	case ErrTypeBadRequest,
		graph.ErrTypeInvalidQuery,
		graph.ErrTypeInvalidPosition,
		models.ErrTypeInvalidNavType,
		models.ErrTypeInvalidHandle,
		models.ErrTypeInvalidSnapshot:
		return http.StatusBadRequest

	case ErrTypeUnauthorized:
		return http.StatusUnauthorized

	case ErrTypeMutationDisabled:
		return http.StatusForbidden

	case models.ErrTypeNodeNotFound:
		return http.StatusNotFound

	case models.ErrTypeNodeExists:
		return http.StatusConflict

	case graph.ErrTypeGraphClosed:
		return http.StatusServiceUnavailable

	case models.ErrTypeHandlesExhausted:
		return http.StatusInsufficientStorage

	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logs.Warn(err)
	}

	writeJSON(w, status, errorResponse{
		Type:    errors.Type(err),
		Message: err.Error(),
	})
}

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "ok",
			Version: version,
		})
	}
}
