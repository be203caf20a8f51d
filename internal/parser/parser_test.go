package parser

import (
	"context"
	"io/fs"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus-benchmark-exporter/internal/registry"
	"nimbus-benchmark-exporter/internal/util"
)

type testTargets struct {
	reg      *registry.Registry
	success  *registry.Gauge
	duration *registry.Gauge
	blocks   *registry.Gauge
	info     *registry.Info
	up       *registry.Gauge
}

func newTestParser() (*Parser, testTargets) {
	reg := registry.New()
	tt := testTargets{
		reg:      reg,
		success:  reg.MustGauge("nimbus_benchmark_stage_success", "Success status of benchmark stage", "stage_name", "benchmark_type"),
		duration: reg.MustGauge("nimbus_benchmark_stage_duration_seconds", "Duration of benchmark stage in seconds", "stage_name", "benchmark_type"),
		info:     reg.MustInfo("nimbus_benchmark_info", "Benchmark metadata information"),
		blocks:   reg.MustGauge("nimbus_benchmark_total_blocks", "Total number of blocks in benchmark", "benchmark_type"),
		up:       reg.MustGauge("nimbus_benchmark_exporter_up", "Exporter health status"),
	}
	routes := map[string]Route{
		"nimbus_benchmark_stage_success":          {Gauge: tt.success},
		"nimbus_benchmark_stage_duration_seconds": {Gauge: tt.duration},
		"nimbus_benchmark_total_blocks":           {Gauge: tt.blocks},
		"nimbus_benchmark_info":                   {Info: tt.info},
	}
	return New(reg, routes, &util.MetricsLogger{}), tt
}

const benchmarkFile = `# HELP nimbus_benchmark_stage_success Success status of benchmark stage
# TYPE nimbus_benchmark_stage_success gauge
nimbus_benchmark_stage_success{stage_name="import",benchmark_type="short"} 1
nimbus_benchmark_stage_duration_seconds{stage_name="import",benchmark_type="short"} 812.25

nimbus_benchmark_total_blocks{benchmark_type="short"} notanumber
nimbus_benchmark_total_blocks{benchmark_type="short"} 20000
nimbus_benchmark_info{version="v0.1.0",commit="deadbeef",network="mainnet"} 1
nimbus_benchmark_stage_success{stage_name="import"} 1
nimbus_benchmark_custom_gas_per_second{benchmark_type="short"} 1.25e+07
nimbus_benchmark_exporter_up 0
`

func TestParser_Parse(t *testing.T) {
	p, tt := newTestParser()

	res := p.Parse(benchmarkFile)
	assert.Equal(t, Result{Lines: 8, Applied: 5, Skipped: 3}, res)

	v, ok := tt.success.Value(registry.Labels{"stage_name": "import", "benchmark_type": "short"})
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = tt.duration.Value(registry.Labels{"stage_name": "import", "benchmark_type": "short"})
	assert.True(t, ok)
	assert.Equal(t, 812.25, v)

	v, ok = tt.blocks.Value(registry.Labels{"benchmark_type": "short"})
	assert.True(t, ok, "a bad line must not affect the following lines")
	assert.Equal(t, 20000.0, v)

	record, ok := tt.info.Get()
	assert.True(t, ok)
	assert.Equal(t, registry.Labels{"version": "v0.1.0", "commit": "deadbeef", "network": "mainnet"}, record)

	_, ok = tt.up.Value(registry.Labels{})
	assert.False(t, ok, "exporter-owned families cannot be written from the file")

	assert.True(t, tt.reg.Has("nimbus_benchmark_custom_gas_per_second"), "unknown names are forwarded")
}

func TestParser_RoundTrip(t *testing.T) {
	p, tt := newTestParser()
	p.Parse(benchmarkFile)

	out, err := tt.reg.Serialize()
	require.NoError(t, err)

	// Feed the exposition back through a fresh parser: every recognised
	// value and label must survive unchanged.
	p2, tt2 := newTestParser()
	res := p2.Parse(string(out))
	assert.Zero(t, res.Skipped)

	for _, g := range []struct{ a, b *registry.Gauge }{{tt.success, tt2.success}, {tt.duration, tt2.duration}} {
		labels := registry.Labels{"stage_name": "import", "benchmark_type": "short"}
		want, _ := g.a.Value(labels)
		got, ok := g.b.Value(labels)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	want, _ := tt.blocks.Value(registry.Labels{"benchmark_type": "short"})
	got, _ := tt2.blocks.Value(registry.Labels{"benchmark_type": "short"})
	assert.Equal(t, want, got)

	wantInfo, _ := tt.info.Get()
	gotInfo, _ := tt2.info.Get()
	assert.Equal(t, wantInfo, gotInfo)
}

func TestParser_PassthroughSchema(t *testing.T) {
	p, tt := newTestParser()

	res := p.Parse(`forwarded_metric{a="1"} 1
forwarded_metric{a="2"} 2
forwarded_metric{b="3"} 3
`)
	assert.Equal(t, Result{Lines: 3, Applied: 2, Skipped: 1}, res)

	// The family is ours now, a later pass may keep updating it.
	res = p.Parse(`forwarded_metric{a="1"} 10`)
	assert.Equal(t, 1, res.Applied)

	out, err := tt.reg.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `forwarded_metric{a="1"} 10`)
	assert.Contains(t, string(out), `forwarded_metric{a="2"} 2`)
	assert.NotContains(t, string(out), `b="3"`)
}

type fakeSource struct {
	data []byte
	err  error
}

func (f *fakeSource) Read(ctx context.Context) ([]byte, error) { return f.data, f.err }
func (f *fakeSource) Location() string                         { return "fake.prom" }

func TestParser_ParseSource(t *testing.T) {
	p, tt := newTestParser()
	require.NoError(t, tt.blocks.Set(registry.Labels{"benchmark_type": "long"}, 7))
	before, err := tt.reg.Serialize()
	require.NoError(t, err)

	// absent file: empty pass, registry untouched
	res, err := p.ParseSource(context.Background(), &fakeSource{err: errors.Wrap(fs.ErrNotExist, "open")})
	assert.NoError(t, err)
	assert.Equal(t, Result{}, res)
	after, err := tt.reg.Serialize()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// unreadable file surfaces as an error for the caller to log
	_, err = p.ParseSource(context.Background(), &fakeSource{err: fs.ErrPermission})
	assert.ErrorIs(t, err, fs.ErrPermission)

	res, err = p.ParseSource(context.Background(), &fakeSource{data: []byte(`nimbus_benchmark_total_blocks{benchmark_type="long"} 9`)})
	assert.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
}
