package parser

import (
	"context"
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"

	"nimbus-benchmark-exporter/internal/domain"
	"nimbus-benchmark-exporter/internal/registry"
	"nimbus-benchmark-exporter/internal/util"
)

const passthroughHelp = "Forwarded from the benchmark metrics file"

var ErrReservedName = errors.New("metric name is owned by the exporter")

// Route sends a recognised metric name to a fixed target. Exactly one of
// Gauge and Info is set; Info targets ignore the sample value.
type Route struct {
	Gauge *registry.Gauge
	Info  *registry.Info
}

// Result counts what a parse pass did with the file's sample lines.
type Result struct {
	Lines   int
	Applied int
	Skipped int
}

// Parser decodes the benchmark file into the registry. Names in the route
// table land on their target families, any other valid name is forwarded as
// a gauge family of its own.
type Parser struct {
	reg         *registry.Registry
	routes      map[string]Route
	passthrough map[string]struct{}
	logger      *util.MetricsLogger
}

func New(reg *registry.Registry, routes map[string]Route, logger *util.MetricsLogger) *Parser {
	return &Parser{
		reg:         reg,
		routes:      routes,
		passthrough: make(map[string]struct{}),
		logger:      logger,
	}
}

// ParseSource reads the whole file and parses it. An absent file is a no-op.
func (p *Parser) ParseSource(ctx context.Context, src domain.BenchmarkSource) (Result, error) {
	contents, err := src.Read(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.LogEvent(util.LOG_LEVEL_DEBUG, "benchmark file not present:", src.Location())
			return Result{}, nil
		}
		return Result{}, errors.Wrapf(err, "reading benchmark file %s", src.Location())
	}
	return p.Parse(string(contents)), nil
}

// Parse applies every well-formed sample line. A bad line is logged and
// skipped without affecting its neighbours.
func (p *Parser) Parse(contents string) Result {
	var res Result
	for i, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res.Lines++

		sample, err := ParseLine(line)
		if err == nil {
			err = p.apply(sample)
		}
		if err != nil {
			res.Skipped++
			p.logger.LogEventf(util.LOG_LEVEL_WARN, "skipping benchmark line %d: %v", i+1, err)
			continue
		}
		res.Applied++
	}
	return res
}

func (p *Parser) apply(s Sample) error {
	if route, ok := p.routes[s.Name]; ok {
		if route.Info != nil {
			return route.Info.Set(s.Labels)
		}
		return route.Gauge.Set(s.Labels, s.Value)
	}

	if _, ours := p.passthrough[s.Name]; !ours && p.reg.Has(s.Name) {
		return errors.Wrapf(ErrReservedName, "%s", s.Name)
	}
	if err := p.reg.SetGauge(s.Name, passthroughHelp, s.Labels, s.Value); err != nil {
		return err
	}
	p.passthrough[s.Name] = struct{}{}
	return nil
}
