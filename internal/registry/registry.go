// Package registry holds the exporter's in-memory gauges and renders them in
// the Prometheus text exposition format.
//
// Families keep their registration order and points keep their first-seen
// order, so two gathers over the same state render byte-identical output.
// Re-setting a point overwrites it; nothing is ever reset to zero.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"
)

var (
	ErrTypeConflict   = errors.New("family already registered with a different type")
	ErrSchemaConflict = errors.New("family already registered with different label keys")
	ErrLabelSchema    = errors.New("label set does not match family schema")
	ErrInvalidName    = errors.New("invalid metric name")
	ErrInvalidLabel   = errors.New("invalid label name")
)

// Labels is an unordered label set. Point identity is (family, label set).
type Labels map[string]string

type Kind int

const (
	KindGauge Kind = iota
	KindInfo
)

func (k Kind) String() string {
	if k == KindInfo {
		return "info"
	}
	return "gauge"
}

type Registry struct {
	mu       sync.RWMutex
	families []*family
	byName   map[string]*family
}

func New() *Registry {
	return &Registry{byName: make(map[string]*family)}
}

// Gauge registers (or returns the existing) gauge family with a fixed label
// key tuple.
func (r *Registry) Gauge(name, help string, keys ...string) (*Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.registerLocked(name, help, KindGauge, keys)
	if err != nil {
		return nil, err
	}
	return &Gauge{reg: r, fam: f}, nil
}

// MustGauge is Gauge for static declarations; a conflict is a programming
// error and panics.
func (r *Registry) MustGauge(name, help string, keys ...string) *Gauge {
	g, err := r.Gauge(name, help, keys...)
	if err != nil {
		panic(err)
	}
	return g
}

// Info registers (or returns the existing) info family. Its single record is
// rendered as a gauge fixed at 1 carrying the record as labels.
func (r *Registry) Info(name, help string) (*Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.registerLocked(name, help, KindInfo, nil)
	if err != nil {
		return nil, err
	}
	return &Info{reg: r, fam: f}, nil
}

func (r *Registry) MustInfo(name, help string) *Info {
	i, err := r.Info(name, help)
	if err != nil {
		panic(err)
	}
	return i
}

// SetGauge upserts a point, creating the family on first use with the key set
// of the supplied labels.
func (r *Registry) SetGauge(name, help string, labels Labels, value float64) error {
	g, err := r.Gauge(name, help, sortedKeys(labels)...)
	if err != nil {
		return err
	}
	return g.Set(labels, value)
}

// SetInfo replaces the whole record of the named info family, creating it on
// first use.
func (r *Registry) SetInfo(name, help string, record Labels) error {
	i, err := r.Info(name, help)
	if err != nil {
		return err
	}
	return i.Set(record)
}

// Has reports whether a family with this name was registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Names lists registered families in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.families))
	for _, f := range r.families {
		names = append(names, f.name)
	}
	return names
}

func (r *Registry) registerLocked(name, help string, kind Kind, keys []string) (*family, error) {
	if !model.IsValidMetricName(model.LabelValue(name)) {
		return nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if f, ok := r.byName[name]; ok {
		if f.kind != kind {
			return nil, errors.Wrapf(ErrTypeConflict, "%s is a %s, not a %s", name, f.kind, kind)
		}
		if kind == KindGauge && !sameKeySet(f.keys, keys) {
			return nil, errors.Wrapf(ErrSchemaConflict, "%s has keys %v, got %v", name, f.keys, keys)
		}
		return f, nil
	}

	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if !model.LabelName(k).IsValid() {
			return nil, errors.Wrapf(ErrInvalidLabel, "%s: %q", name, k)
		}
		if _, dup := seen[k]; dup {
			return nil, errors.Wrapf(ErrInvalidLabel, "%s: duplicate key %q", name, k)
		}
		seen[k] = struct{}{}
	}

	f := &family{
		name:  name,
		help:  help,
		kind:  kind,
		keys:  append([]string(nil), keys...),
		index: make(map[string]int),
	}
	r.families = append(r.families, f)
	r.byName[name] = f
	return f, nil
}

// Gather snapshots every non-empty family. The result shares nothing with the
// registry and may be encoded after the lock is released.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*dto.MetricFamily, 0, len(r.families))
	for _, f := range r.families {
		if len(f.points) == 0 {
			continue
		}
		out = append(out, f.snapshot())
	}
	return out, nil
}

// Serialize renders the current state in the text exposition format.
func (r *Registry) Serialize() ([]byte, error) {
	families, err := r.Gather()
	if err != nil {
		return nil, err
	}
	return Serialize(families)
}

func sortedKeys(labels Labels) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return strings.Join(as, "\xff") == strings.Join(bs, "\xff")
}
