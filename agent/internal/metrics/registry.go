package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/obsidianstack/truststore-agent/agent/internal/expiry"
)

// Registry registers expiry gauges as Prometheus GaugeFuncs.
type Registry struct {
	reg prometheus.Registerer
}

// New returns a Registry backed by reg, or by the default registerer when reg
// is nil.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Registry{reg: reg}
}

var _ expiry.Registry = (*Registry)(nil)

// RegisterGauge implements expiry.Registry.
func (r *Registry) RegisterGauge(name, unit, description string, tags []expiry.Tag, fn func() float64) error {
	labels := make(prometheus.Labels, len(tags))
	for _, t := range tags {
		labels[LabelName(t.Key)] = t.Value
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        MetricName(name, unit),
		Help:        description,
		ConstLabels: labels,
	}, fn)
	if err := r.reg.Register(g); err != nil {
		return fmt.Errorf("metrics: register %s: %w", MetricName(name, unit), err)
	}
	return nil
}

// MetricName converts a dotted meter name and base unit to a Prometheus
// metric name.
func MetricName(name, unit string) string {
	n := sanitize(name)
	if unit == "" {
		return n
	}
	suffix := "_" + sanitize(unit)
	if !strings.HasSuffix(n, suffix) {
		n += suffix
	}
	return n
}

// LabelName converts a dotted tag key to a Prometheus label name.
func LabelName(key string) string {
	return strings.ReplaceAll(sanitize(key), ":", "_")
}

// sanitize replaces every rune outside [a-zA-Z0-9_:] with '_' and prefixes a
// leading digit.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == ':':
			b.WriteRune(c)
		case c >= '0' && c <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
