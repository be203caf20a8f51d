package endpoints

import (
	"net/http"
)

var healthBody = []byte("OK\n")

// Health is a liveness probe. It never touches the registry.
type Health struct {
	Response APIResponse
}

func (h *Health) GetHealthHandler(w http.ResponseWriter, r *http.Request) {
	h.Response.WriteResultResponse(w, "text/plain", healthBody)
}

// NotFoundHandler answers every unrouted path.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	APIResponse{}.WriteErrorResponse(w, ErrRouteNotFound)
}
