package endpoints

import (
	"net/http"
	"strconv"
)

const plainTextContentType = "text/plain; charset=utf-8"

// APIResponse writes exporter responses. Scrapers must never see a cached
// body, so every response carries Cache-Control: no-cache.
type APIResponse struct{}

func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.WriteErrorResponseWithStatusCode(w, err, GetStatusCode(err))
}

// WriteErrorResponseWithStatusCode answers with the bare status text. Error
// details stay in the log, not on the wire.
func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, statusCode int) {
	body := []byte(http.StatusText(statusCode))

	w.Header().Set("Content-Type", plainTextContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
