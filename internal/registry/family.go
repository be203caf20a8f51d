package registry

import (
	"strings"

	"github.com/cockroachdb/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"
)

type family struct {
	name   string
	help   string
	kind   Kind
	keys   []string
	points []*point
	index  map[string]int
}

type point struct {
	labels []*dto.LabelPair
	value  float64
}

func (f *family) snapshot() *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(f.name),
		Help: ptr(f.help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, p := range f.points {
		m := &dto.Metric{Gauge: &dto.Gauge{Value: ptr(p.value)}}
		for _, lp := range p.labels {
			m.Label = append(m.Label, &dto.LabelPair{Name: ptr(lp.GetName()), Value: ptr(lp.GetValue())})
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// Gauge is a handle on one gauge family.
type Gauge struct {
	reg *Registry
	fam *family
}

func (g *Gauge) Name() string { return g.fam.name }

func (g *Gauge) Keys() []string { return append([]string(nil), g.fam.keys...) }

// Set upserts the point identified by labels. The label set must carry exactly
// the family's keys; anything else is rejected and the point dropped.
func (g *Gauge) Set(labels Labels, value float64) error {
	values, err := g.values(labels)
	if err != nil {
		return err
	}
	key := strings.Join(values, "\xff")

	g.reg.mu.Lock()
	defer g.reg.mu.Unlock()

	if i, ok := g.fam.index[key]; ok {
		g.fam.points[i].value = value
		return nil
	}
	p := &point{value: value}
	for i, k := range g.fam.keys {
		p.labels = append(p.labels, &dto.LabelPair{Name: ptr(k), Value: ptr(values[i])})
	}
	g.fam.index[key] = len(g.fam.points)
	g.fam.points = append(g.fam.points, p)
	return nil
}

// Value returns the current value of one point.
func (g *Gauge) Value(labels Labels) (float64, bool) {
	values, err := g.values(labels)
	if err != nil {
		return 0, false
	}
	g.reg.mu.RLock()
	defer g.reg.mu.RUnlock()
	i, ok := g.fam.index[strings.Join(values, "\xff")]
	if !ok {
		return 0, false
	}
	return g.fam.points[i].value, true
}

func (g *Gauge) values(labels Labels) ([]string, error) {
	if len(labels) != len(g.fam.keys) {
		return nil, errors.Wrapf(ErrLabelSchema, "%s wants %v, got %v", g.fam.name, g.fam.keys, sortedKeys(labels))
	}
	values := make([]string, len(g.fam.keys))
	for i, k := range g.fam.keys {
		v, ok := labels[k]
		if !ok {
			return nil, errors.Wrapf(ErrLabelSchema, "%s wants %v, got %v", g.fam.name, g.fam.keys, sortedKeys(labels))
		}
		values[i] = v
	}
	return values, nil
}

// Info is a handle on an info family holding at most one record.
type Info struct {
	reg *Registry
	fam *family
}

func (i *Info) Name() string { return i.fam.name }

// Set replaces the record wholesale.
func (i *Info) Set(record Labels) error {
	keys := sortedKeys(record)
	p := &point{value: 1}
	for _, k := range keys {
		if !model.LabelName(k).IsValid() {
			return errors.Wrapf(ErrInvalidLabel, "%s: %q", i.fam.name, k)
		}
		p.labels = append(p.labels, &dto.LabelPair{Name: ptr(k), Value: ptr(record[k])})
	}

	i.reg.mu.Lock()
	defer i.reg.mu.Unlock()
	i.fam.points = []*point{p}
	return nil
}

// Get returns a copy of the current record.
func (i *Info) Get() (Labels, bool) {
	i.reg.mu.RLock()
	defer i.reg.mu.RUnlock()
	if len(i.fam.points) == 0 {
		return nil, false
	}
	record := make(Labels, len(i.fam.points[0].labels))
	for _, lp := range i.fam.points[0].labels {
		record[lp.GetName()] = lp.GetValue()
	}
	return record, true
}

func ptr[T any](v T) *T { return &v }
