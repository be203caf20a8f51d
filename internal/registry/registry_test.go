package registry

import (
	"math"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SerializeOrder(t *testing.T) {
	reg := New()

	success := reg.MustGauge("nimbus_benchmark_stage_success", "Success status of benchmark stage", "stage_name", "benchmark_type")
	info := reg.MustInfo("nimbus_benchmark_info", "Benchmark metadata information")
	up := reg.MustGauge("nimbus_benchmark_exporter_up", "Exporter health status")

	require.NoError(t, up.Set(Labels{}, 1))
	require.NoError(t, success.Set(Labels{"stage_name": "verify", "benchmark_type": "short"}, 0))
	require.NoError(t, success.Set(Labels{"benchmark_type": "short", "stage_name": "import"}, 1))
	require.NoError(t, info.Set(Labels{"version": "v1", "commit": "abc"}))

	out, err := reg.Serialize()
	require.NoError(t, err)

	expected := `# HELP nimbus_benchmark_stage_success Success status of benchmark stage
# TYPE nimbus_benchmark_stage_success gauge
nimbus_benchmark_stage_success{stage_name="verify",benchmark_type="short"} 0
nimbus_benchmark_stage_success{stage_name="import",benchmark_type="short"} 1
# HELP nimbus_benchmark_info Benchmark metadata information
# TYPE nimbus_benchmark_info gauge
nimbus_benchmark_info{commit="abc",version="v1"} 1
# HELP nimbus_benchmark_exporter_up Exporter health status
# TYPE nimbus_benchmark_exporter_up gauge
nimbus_benchmark_exporter_up 1
`
	assert.Equal(t, expected, string(out))
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := New()
	g := reg.MustGauge("nimbus_benchmark_total_blocks", "Total number of blocks in benchmark", "benchmark_type")

	require.NoError(t, g.Set(Labels{"benchmark_type": "short"}, 10))
	require.NoError(t, g.Set(Labels{"benchmark_type": "long"}, 20))
	require.NoError(t, g.Set(Labels{"benchmark_type": "short"}, 30))

	v, ok := g.Value(Labels{"benchmark_type": "short"})
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].Metric, 2, "re-setting a point must not add a new one")
	assert.Equal(t, "short", families[0].Metric[0].Label[0].GetValue(), "first-seen order is kept")
	assert.Equal(t, 30.0, families[0].Metric[0].Gauge.GetValue())
}

func TestRegistry_LabelSchemaEnforced(t *testing.T) {
	reg := New()
	g := reg.MustGauge("nimbus_benchmark_stage_duration_seconds", "Duration of benchmark stage in seconds", "stage_name", "benchmark_type")

	err := g.Set(Labels{"stage_name": "import"}, 1)
	assert.ErrorIs(t, err, ErrLabelSchema)

	err = g.Set(Labels{"stage_name": "import", "benchmark_kind": "short"}, 1)
	assert.ErrorIs(t, err, ErrLabelSchema)

	err = g.Set(Labels{"stage_name": "import", "benchmark_type": "short", "extra": "x"}, 1)
	assert.ErrorIs(t, err, ErrLabelSchema)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "rejected points are dropped and empty families are not rendered")
}

func TestRegistry_Registration(t *testing.T) {
	reg := New()
	g := reg.MustGauge("nimbus_benchmark_cgroup_processes", "Number of processes from cgroup", "service")

	again, err := reg.Gauge("nimbus_benchmark_cgroup_processes", "ignored", "service")
	require.NoError(t, err)
	require.NoError(t, again.Set(Labels{"service": "a"}, 3))
	v, ok := g.Value(Labels{"service": "a"})
	assert.True(t, ok, "re-registration returns the same family")
	assert.Equal(t, 3.0, v)

	_, err = reg.Gauge("nimbus_benchmark_cgroup_processes", "", "unit")
	assert.ErrorIs(t, err, ErrSchemaConflict)

	_, err = reg.Info("nimbus_benchmark_cgroup_processes", "")
	assert.ErrorIs(t, err, ErrTypeConflict)

	assert.Panics(t, func() { reg.MustInfo("nimbus_benchmark_cgroup_processes", "") })

	_, err = reg.Gauge("0bad", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = reg.Gauge("good_name", "", "bad-key")
	assert.ErrorIs(t, err, ErrInvalidLabel)

	_, err = reg.Gauge("dup_keys", "", "a", "a")
	assert.ErrorIs(t, err, ErrInvalidLabel)

	assert.True(t, reg.Has("nimbus_benchmark_cgroup_processes"))
	assert.False(t, reg.Has("dup_keys"))
	assert.Equal(t, []string{"nimbus_benchmark_cgroup_processes"}, reg.Names())
}

func TestRegistry_SetGaugeCreatesFamily(t *testing.T) {
	reg := New()

	require.NoError(t, reg.SetGauge("custom_metric", "Forwarded", Labels{"b": "2", "a": "1"}, 4.5))
	require.NoError(t, reg.SetGauge("custom_metric", "Forwarded", Labels{"a": "3", "b": "4"}, 5))

	err := reg.SetGauge("custom_metric", "Forwarded", Labels{"a": "1"}, 6)
	assert.ErrorIs(t, err, ErrSchemaConflict)

	out, err := reg.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `custom_metric{a="1",b="2"} 4.5`)
	assert.Contains(t, string(out), `custom_metric{a="3",b="4"} 5`)
}

func TestInfo_ReplacedWholesale(t *testing.T) {
	reg := New()
	info := reg.MustInfo("nimbus_benchmark_info", "Benchmark metadata information")

	_, ok := info.Get()
	assert.False(t, ok)

	require.NoError(t, info.Set(Labels{"version": "v1", "network": "mainnet"}))
	require.NoError(t, reg.SetInfo("nimbus_benchmark_info", "Benchmark metadata information", Labels{"version": "v2"}))

	record, ok := info.Get()
	require.True(t, ok)
	assert.Equal(t, Labels{"version": "v2"}, record)

	assert.ErrorIs(t, info.Set(Labels{"bad key": "x"}), ErrInvalidLabel)
	record, _ = info.Get()
	assert.Equal(t, Labels{"version": "v2"}, record, "a rejected record leaves the old one in place")

	out, err := reg.Serialize()
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(out), "nimbus_benchmark_info{"))
}

func TestSerialize_SpecialValues(t *testing.T) {
	reg := New()
	g := reg.MustGauge("special_values", "Special values", "kind")
	require.NoError(t, g.Set(Labels{"kind": "nan"}, math.NaN()))
	require.NoError(t, g.Set(Labels{"kind": "pinf"}, math.Inf(1)))
	require.NoError(t, g.Set(Labels{"kind": "ninf"}, math.Inf(-1)))
	require.NoError(t, g.Set(Labels{"kind": `quote"d`}, 2.5))

	out, err := reg.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `special_values{kind="nan"} NaN`)
	assert.Contains(t, string(out), `special_values{kind="pinf"} +Inf`)
	assert.Contains(t, string(out), `special_values{kind="ninf"} -Inf`)
	assert.Contains(t, string(out), `special_values{kind="quote\"d"} 2.5`)
}

func TestSerialize_InvalidFamily(t *testing.T) {
	name := "broken"
	_, err := Serialize([]*dto.MetricFamily{{Name: &name, Type: dto.MetricType_GAUGE.Enum()}})
	assert.Error(t, err)
}

func TestSerialize_Deterministic(t *testing.T) {
	reg := New()
	g := reg.MustGauge("nimbus_benchmark_cgroup_memory_bytes", "Memory usage from cgroup", "service")
	for _, svc := range []string{"c", "a", "b"} {
		require.NoError(t, g.Set(Labels{"service": svc}, 1))
	}

	first, err := reg.Serialize()
	require.NoError(t, err)
	second, err := reg.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Less(t, strings.Index(string(first), `"c"`), strings.Index(string(first), `"a"`))
}
