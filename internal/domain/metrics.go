package domain

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrNoCgroup marks a service whose cgroup directory does not exist. Callers
// treat it as "nothing to sample", not as a fault.
var ErrNoCgroup = errors.New("service has no cgroup directory")

// CgroupSample is one service's accounting snapshot. A nil field means its
// source file was missing, unreadable or malformed.
type CgroupSample struct {
	Service         string   `json:"service"`
	CPUSeconds      *float64 `json:"cpu_seconds,omitempty"`
	MemoryBytes     *uint64  `json:"memory_bytes,omitempty"`
	MemoryPeakBytes *uint64  `json:"memory_peak_bytes,omitempty"`
	PIDCount        *uint64  `json:"pid_count,omitempty"`
	IOReadBytes     *uint64  `json:"io_read_bytes,omitempty"`
	IOWriteBytes    *uint64  `json:"io_write_bytes,omitempty"`
}

// Empty reports whether no field could be sampled.
func (s CgroupSample) Empty() bool {
	return s.CPUSeconds == nil && s.MemoryBytes == nil && s.MemoryPeakBytes == nil &&
		s.PIDCount == nil && s.IOReadBytes == nil && s.IOWriteBytes == nil
}

// BenchmarkSource yields the raw benchmark exposition file. An absent file is
// reported with an error matching fs.ErrNotExist.
type BenchmarkSource interface {
	Read(ctx context.Context) ([]byte, error)
	Location() string
}

type ServiceSampler interface {
	DiscoverServices(ctx context.Context) []string
	Sample(ctx context.Context, service string) (CgroupSample, error)
}
