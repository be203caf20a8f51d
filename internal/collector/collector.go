// Package collector decides when the benchmark file and the cgroup tree are
// re-read, and hands out consistent registry snapshots.
//
// All refresh and gather work runs under one mutex, so a scrape sees either
// the state before a refresh or after it, never a mixture. Concurrent scrapes
// are additionally coalesced so a stale window costs exactly one refresh.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sync/singleflight"

	"nimbus-benchmark-exporter/internal/domain"
	"nimbus-benchmark-exporter/internal/parser"
	"nimbus-benchmark-exporter/internal/registry"
	"nimbus-benchmark-exporter/internal/util"
)

const DefaultRefreshInterval = 10 * time.Second

type Exporter struct {
	mu          sync.Mutex
	reg         *registry.Registry
	families    *Families
	parser      *parser.Parser
	source      domain.BenchmarkSource
	sampler     domain.ServiceSampler
	interval    time.Duration
	now         func() time.Time
	lastRefresh time.Time
	logger      *util.MetricsLogger

	group singleflight.Group
}

var _ prometheus.Gatherer = (*Exporter)(nil)

type Option func(*Exporter)

// WithClock replaces time.Now for staleness decisions and refresh stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func New(source domain.BenchmarkSource, sampler domain.ServiceSampler, interval time.Duration, logger *util.MetricsLogger, opts ...Option) *Exporter {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	reg := registry.New()
	families := RegisterFamilies(reg)

	e := &Exporter{
		reg:      reg,
		families: families,
		parser:   parser.New(reg, families.Routes(), logger),
		source:   source,
		sampler:  sampler,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) Registry() *registry.Registry { return e.reg }

func (e *Exporter) Families() *Families { return e.families }

func (e *Exporter) LastRefresh() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRefresh
}

// Stale reports whether the next scrape will refresh.
func (e *Exporter) Stale() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staleLocked()
}

func (e *Exporter) staleLocked() bool {
	return e.lastRefresh.IsZero() || e.now().Sub(e.lastRefresh) > e.interval
}

// Refresh re-reads both sources unconditionally.
func (e *Exporter) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

// Gather refreshes when stale and snapshots the registry. Simultaneous
// callers share one snapshot.
func (e *Exporter) Gather() ([]*dto.MetricFamily, error) {
	v, err, _ := e.group.Do("gather", func() (interface{}, error) {
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.staleLocked() {
			// Failures are logged and reflected in the liveness gauge; the
			// cached state is still served.
			_ = e.refreshLocked(context.Background())
		}
		return e.reg.Gather()
	})
	if err != nil {
		return nil, err
	}
	return v.([]*dto.MetricFamily), nil
}

// Serialize is Gather followed by text exposition encoding.
func (e *Exporter) Serialize() ([]byte, error) {
	families, err := e.Gather()
	if err != nil {
		return nil, err
	}
	return registry.Serialize(families)
}

func (e *Exporter) refreshLocked(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("refresh panicked: %v", r)
		}
		if err != nil {
			e.logger.LogEventf(util.LOG_LEVEL_ERROR, "Failed to refresh metrics: %v", err)
			_ = e.families.ExporterUp.Set(registry.Labels{}, 0)
		}
	}()

	e.step("parse benchmark file", func() error {
		res, err := e.parser.ParseSource(ctx, e.source)
		if res.Lines > 0 {
			e.logger.LogEventf(util.LOG_LEVEL_DEBUG, "parsed %s: %d applied, %d skipped", e.source.Location(), res.Applied, res.Skipped)
		}
		return err
	})
	e.step("collect cgroup metrics", func() error {
		return e.collectCgroups(ctx)
	})

	now := e.now()
	if err := e.families.ExporterUp.Set(registry.Labels{}, 1); err != nil {
		return err
	}
	if err := e.families.ExporterLastRefresh.Set(registry.Labels{}, float64(now.Unix())); err != nil {
		return err
	}
	e.lastRefresh = now

	e.logger.LogEvent(util.LOG_LEVEL_INFO, "Refreshed metrics from", e.source.Location())
	return nil
}

// step runs one refresh stage in isolation: its error or panic is logged and
// does not stop the next stage.
func (e *Exporter) step(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.LogEventf(util.LOG_LEVEL_ERROR, "%s panicked: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		e.logger.LogEventf(util.LOG_LEVEL_WARN, "%s failed: %v", name, err)
	}
}

func (e *Exporter) collectCgroups(ctx context.Context) error {
	for _, service := range e.sampler.DiscoverServices(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample, err := e.sampleService(ctx, service)
		if err != nil {
			if errors.Is(err, domain.ErrNoCgroup) {
				e.logger.LogEvent(util.LOG_LEVEL_DEBUG, "skipping", service+":", err)
				continue
			}
			e.logger.LogEventf(util.LOG_LEVEL_WARN, "Failed to collect cgroup metrics for %s: %v", service, err)
		}
		e.publish(sample)
	}
	return nil
}

func (e *Exporter) sampleService(ctx context.Context, service string) (sample domain.CgroupSample, err error) {
	defer func() {
		if r := recover(); r != nil {
			sample = domain.CgroupSample{Service: service}
			err = errors.Newf("sampling panicked: %v", r)
		}
	}()
	return e.sampler.Sample(ctx, service)
}

// publish writes the present fields of a sample; absent fields keep whatever
// value an earlier refresh left behind.
func (e *Exporter) publish(s domain.CgroupSample) {
	labels := registry.Labels{"service": s.Service}
	set := func(g *registry.Gauge, v float64) {
		if err := g.Set(labels, v); err != nil {
			e.logger.LogEventf(util.LOG_LEVEL_WARN, "dropping %s for %s: %v", g.Name(), s.Service, err)
		}
	}

	if s.CPUSeconds != nil {
		set(e.families.CgroupCPU, *s.CPUSeconds)
	}
	if s.MemoryBytes != nil {
		set(e.families.CgroupMemory, float64(*s.MemoryBytes))
	}
	if s.MemoryPeakBytes != nil {
		set(e.families.CgroupMemoryPeak, float64(*s.MemoryPeakBytes))
	}
	if s.PIDCount != nil {
		set(e.families.CgroupProcesses, float64(*s.PIDCount))
	}
	if s.IOReadBytes != nil {
		set(e.families.CgroupIORead, float64(*s.IOReadBytes))
	}
	if s.IOWriteBytes != nil {
		set(e.families.CgroupIOWrite, float64(*s.IOWriteBytes))
	}
}
