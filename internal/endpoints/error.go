package endpoints

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	ErrGatherFailed    = errors.New("failed to gather metrics")
	ErrEncodeFailed    = errors.New("failed to encode metrics")
	ErrRouteNotFound   = errors.New("no such route")
	ErrHandlerPanicked = errors.New("handler panicked")
)

func GetStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, ErrRouteNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
