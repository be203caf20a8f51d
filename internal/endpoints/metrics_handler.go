package endpoints

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"nimbus-benchmark-exporter/internal/registry"
	"nimbus-benchmark-exporter/internal/util"
)

type Metrics struct {
	Response APIResponse
	logger   *util.MetricsLogger
	gatherer prometheus.Gatherer
}

func (m *Metrics) Init(gatherer prometheus.Gatherer, logger *util.MetricsLogger) {
	m.gatherer = gatherer
	m.logger = logger
}

// GetMetricsHandler serves the full exposition. The body is encoded before
// any byte is written, so a failure yields a clean 500 instead of a truncated
// 200.
func (m *Metrics) GetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	families, err := m.gatherer.Gather()
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While gathering metrics. Err -", err)
		m.Response.WriteErrorResponse(w, errors.Mark(err, ErrGatherFailed))
		return
	}

	body, err := registry.Serialize(families)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While encoding metrics. Err -", err)
		m.Response.WriteErrorResponse(w, errors.Mark(err, ErrEncodeFailed))
		return
	}

	m.Response.WriteResultResponse(w, registry.ContentType, body)
}
