package api

import (
	"errors"
	"net/http"

	"github.com/camera-control/ccc/internal/camera"
	"github.com/camera-control/ccc/internal/capture"
	"github.com/camera-control/ccc/internal/executor"
	"github.com/camera-control/ccc/internal/system"
)

// WriteDomainError maps a domain error to its HTTP status and error
// envelope and writes them.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, code, message := mapDomainError(err)
	WriteError(w, status, code, message, nil)
}

// mapDomainError normalizes domain errors into API codes.
//
// The busy slot and a missing tool both answer 503: the client's remedy
// is the same, retry with backoff. A run timeout is the gateway-timeout
// case, the device did not finish in its budget.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, executor.ErrBusy):
		return http.StatusServiceUnavailable, "BUSY", "Device is busy, retry with backoff"
	case errors.Is(err, executor.ErrTimeout):
		return http.StatusGatewayTimeout, "TIMEOUT", "Command exceeded its run timeout"
	case errors.Is(err, executor.ErrNotFound):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Device control tool not found"
	case errors.Is(err, executor.ErrAborted):
		return http.StatusConflict, "ABORTED", "Command was cancelled"
	case errors.Is(err, camera.ErrUnknownSetting):
		return http.StatusNotFound, "UNKNOWN_SETTING", "No such setting"
	case errors.Is(err, camera.ErrRead):
		return http.StatusBadGateway, "READ_FAILED", "Device rejected the read"
	case errors.Is(err, camera.ErrWrite):
		return http.StatusBadGateway, "WRITE_FAILED", "Device rejected the write"
	case errors.Is(err, capture.ErrInvalidKind), errors.Is(err, capture.ErrInvalidParams):
		return http.StatusBadRequest, "BAD_REQUEST", "Invalid capture parameters"
	case errors.Is(err, system.ErrUnknownCommand):
		return http.StatusNotFound, "UNKNOWN_COMMAND", "No such system command"
	default:
		return http.StatusInternalServerError, "INTERNAL", "Internal server error"
	}
}
