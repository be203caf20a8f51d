// Package cgroup samples cgroup v2 accounting files of the benchmark
// services.
//
// Every field is read independently. A missing file leaves its field absent
// without complaint, an unreadable or malformed one leaves it absent and is
// reported back to the caller; neither stops the remaining fields.
package cgroup

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/cockroachdb/errors"

	"nimbus-benchmark-exporter/internal/domain"
	"nimbus-benchmark-exporter/internal/util"
)

const (
	DefaultRoot = "/sys/fs/cgroup/system.slice"

	cpuStatFile       = "cpu.stat"
	memoryCurrentFile = "memory.current"
	memoryPeakFile    = "memory.peak"
	pidsCurrentFile   = "pids.current"
	ioStatFile        = "io.stat"

	// Pseudo-files are tiny; the cap keeps a misbehaving file from being
	// slurped whole.
	maxPseudoFileSize = 64 << 10
)

// Discovery selects benchmark services among the entries of the cgroup root.
type Discovery struct {
	Prefix   string
	Contains string
	Suffix   string
	Fallback []string
}

func DefaultDiscovery() Discovery {
	return Discovery{
		Prefix:   "nimbus-eth1-",
		Contains: "benchmark",
		Suffix:   ".service",
		Fallback: []string{
			"nimbus-eth1-mainnet-master-short-benchmark",
			"nimbus-eth1-mainnet-master-long-benchmark",
		},
	}
}

// Match reports whether a cgroup entry belongs to a benchmark service and
// returns the service id.
func (d Discovery) Match(entry string) (string, bool) {
	if !strings.HasPrefix(entry, d.Prefix) || !strings.Contains(entry, d.Contains) || !strings.HasSuffix(entry, d.Suffix) {
		return "", false
	}
	id := strings.TrimSuffix(entry, d.Suffix)
	if id == "" {
		return "", false
	}
	return id, true
}

type Sampler struct {
	fsys      fs.FS
	root      string
	discovery Discovery
	logger    *util.MetricsLogger
}

var _ domain.ServiceSampler = (*Sampler)(nil)

func NewSampler(root string, discovery Discovery, logger *util.MetricsLogger) *Sampler {
	return NewSamplerFS(os.DirFS(root), root, discovery, logger)
}

// NewSamplerFS samples from fsys, whose top level plays the cgroup root.
func NewSamplerFS(fsys fs.FS, root string, discovery Discovery, logger *util.MetricsLogger) *Sampler {
	return &Sampler{
		fsys:      fsys,
		root:      root,
		discovery: discovery,
		logger:    logger,
	}
}

// DiscoverServices lists matching services, or the fallback list when the
// root cannot be read or holds no match. It never fails.
func (s *Sampler) DiscoverServices(ctx context.Context) []string {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		level := util.LOG_LEVEL_WARN
		if errors.Is(err, fs.ErrNotExist) {
			level = util.LOG_LEVEL_DEBUG
		}
		s.logger.LogEventf(level, "failed to discover services under %s: %v", s.root, err)
	}

	var services []string
	for _, entry := range entries {
		if id, ok := s.discovery.Match(entry.Name()); ok {
			services = append(services, id)
		}
	}
	if len(services) == 0 {
		s.logger.LogEvent(util.LOG_LEVEL_DEBUG, "no benchmark services discovered, using fallback list")
		return append([]string(nil), s.discovery.Fallback...)
	}
	return services
}

// Sample reads every accounting field of one service. The returned sample
// holds whatever could be read; the error lists the fields that failed for
// reasons other than absence.
func (s *Sampler) Sample(ctx context.Context, service string) (domain.CgroupSample, error) {
	sample := domain.CgroupSample{Service: service}
	if err := ctx.Err(); err != nil {
		return sample, err
	}

	dir := service + s.discovery.Suffix
	if !fs.ValidPath(dir) || strings.Contains(dir, "/") {
		return sample, errors.Wrapf(domain.ErrNoCgroup, "invalid service id %q", service)
	}
	if info, err := fs.Stat(s.fsys, dir); err != nil || !info.IsDir() {
		return sample, errors.Wrapf(domain.ErrNoCgroup, "%s", path.Join(s.root, dir))
	}

	var failures fieldErrors
	record := func(file string, err error) {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			failures = append(failures, errors.Wrapf(err, "%s", path.Join(s.root, dir, file)))
		}
	}

	if content, err := s.read(dir, cpuStatFile); err != nil {
		record(cpuStatFile, err)
	} else if secs, err := parseCPUStat(content); err != nil {
		record(cpuStatFile, err)
	} else {
		sample.CPUSeconds = &secs
	}

	sample.MemoryBytes = s.count(dir, memoryCurrentFile, record)
	sample.MemoryPeakBytes = s.count(dir, memoryPeakFile, record)
	sample.PIDCount = s.count(dir, pidsCurrentFile, record)

	if content, err := s.read(dir, ioStatFile); err != nil {
		record(ioStatFile, err)
	} else {
		read, write := parseIOStat(content)
		// Zero totals are left unpublished, matching the exporter this
		// replaces. A real drop to zero is indistinguishable from "never
		// sampled" as a result.
		if read > 0 {
			sample.IOReadBytes = &read
		}
		if write > 0 {
			sample.IOWriteBytes = &write
		}
	}

	if len(failures) == 0 {
		return sample, nil
	}
	return sample, failures
}

func (s *Sampler) count(dir, file string, record func(string, error)) *uint64 {
	content, err := s.read(dir, file)
	if err != nil {
		record(file, err)
		return nil
	}
	n, err := parseCount(content)
	if err != nil {
		record(file, err)
		return nil
	}
	return &n
}

func (s *Sampler) read(dir, file string) (string, error) {
	f, err := s.fsys.Open(path.Join(dir, file))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	buf, err := io.ReadAll(io.LimitReader(f, maxPseudoFileSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf)), nil
}

type fieldErrors []error

func (e fieldErrors) Error() string {
	var buf strings.Builder
	for _, err := range e {
		if buf.Len() == 0 {
			buf.WriteString("failed to read some cgroup files: ")
		} else {
			buf.WriteString("; ")
		}
		buf.WriteString(err.Error())
	}
	return buf.String()
}
