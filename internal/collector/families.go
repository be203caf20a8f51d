package collector

import (
	"nimbus-benchmark-exporter/internal/parser"
	"nimbus-benchmark-exporter/internal/registry"
)

// Families holds every family the exporter publishes, in exposition order.
// The names are a compatibility contract with existing dashboards.
type Families struct {
	StageSuccess     *registry.Gauge
	StageDuration    *registry.Gauge
	Info             *registry.Info
	TotalBlocks      *registry.Gauge
	LastRunTimestamp *registry.Gauge

	CgroupCPU        *registry.Gauge
	CgroupMemory     *registry.Gauge
	CgroupMemoryPeak *registry.Gauge
	CgroupProcesses  *registry.Gauge
	CgroupIORead     *registry.Gauge
	CgroupIOWrite    *registry.Gauge

	ExporterUp          *registry.Gauge
	ExporterLastRefresh *registry.Gauge
}

func RegisterFamilies(reg *registry.Registry) *Families {
	return &Families{
		StageSuccess:     reg.MustGauge("nimbus_benchmark_stage_success", "Success status of benchmark stage", "stage_name", "benchmark_type"),
		StageDuration:    reg.MustGauge("nimbus_benchmark_stage_duration_seconds", "Duration of benchmark stage in seconds", "stage_name", "benchmark_type"),
		Info:             reg.MustInfo("nimbus_benchmark_info", "Benchmark metadata information"),
		TotalBlocks:      reg.MustGauge("nimbus_benchmark_total_blocks", "Total number of blocks in benchmark", "benchmark_type"),
		LastRunTimestamp: reg.MustGauge("nimbus_benchmark_last_run_timestamp", "Unix timestamp of last benchmark run", "benchmark_type"),

		CgroupCPU:        reg.MustGauge("nimbus_benchmark_cgroup_cpu_usage_seconds", "CPU usage from cgroup", "service"),
		CgroupMemory:     reg.MustGauge("nimbus_benchmark_cgroup_memory_bytes", "Memory usage from cgroup", "service"),
		CgroupMemoryPeak: reg.MustGauge("nimbus_benchmark_cgroup_memory_peak_bytes", "Peak memory usage from cgroup", "service"),
		CgroupProcesses:  reg.MustGauge("nimbus_benchmark_cgroup_processes", "Number of processes from cgroup", "service"),
		CgroupIORead:     reg.MustGauge("nimbus_benchmark_cgroup_io_read_bytes", "IO read bytes from cgroup", "service"),
		CgroupIOWrite:    reg.MustGauge("nimbus_benchmark_cgroup_io_write_bytes", "IO write bytes from cgroup", "service"),

		ExporterUp:          reg.MustGauge("nimbus_benchmark_exporter_up", "Exporter health status"),
		ExporterLastRefresh: reg.MustGauge("nimbus_benchmark_exporter_last_refresh_timestamp", "Last refresh timestamp"),
	}
}

// Routes is the static name table the benchmark file parser dispatches on.
func (f *Families) Routes() map[string]parser.Route {
	return map[string]parser.Route{
		"nimbus_benchmark_stage_success":          {Gauge: f.StageSuccess},
		"nimbus_benchmark_stage_duration_seconds": {Gauge: f.StageDuration},
		"nimbus_benchmark_total_blocks":           {Gauge: f.TotalBlocks},
		"nimbus_benchmark_last_run_timestamp":     {Gauge: f.LastRunTimestamp},
		"nimbus_benchmark_info":                   {Info: f.Info},
	}
}
