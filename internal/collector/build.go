package collector

import (
	"nimbus-benchmark-exporter/internal/cgroup"
	"nimbus-benchmark-exporter/internal/config"
	"nimbus-benchmark-exporter/internal/repository"
	"nimbus-benchmark-exporter/internal/util"
)

// FromConfig wires the file source and the cgroup sampler described by cfg.
func FromConfig(cfg *config.Config, logger *util.MetricsLogger, opts ...Option) *Exporter {
	discovery := cgroup.Discovery{
		Prefix:   cfg.Discovery.Prefix,
		Contains: cfg.Discovery.Contains,
		Suffix:   cfg.Discovery.Suffix,
		Fallback: cfg.Discovery.Fallback,
	}
	return New(
		repository.NewFileStore(cfg.MetricsFile),
		cgroup.NewSampler(cfg.CgroupRoot, discovery, logger),
		cfg.RefreshInterval,
		logger,
		opts...,
	)
}
