package expiry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/obsidianstack/truststore-agent/agent/internal/truststore"
)

// Metric identity shared by every expiry gauge.
const (
	NamePrefix  = "truststore."
	Unit        = "days"
	Description = "Days left until certificate expires"
)

// ErrCertificateTypeMismatch is returned when an entry is not an X.509
// certificate.
var ErrCertificateTypeMismatch = truststore.ErrCertificateTypeMismatch

// Registry accepts lazily evaluated gauges. fn is called on every read and
// may be called concurrently with other gauges' callbacks.
type Registry interface {
	RegisterGauge(name, unit, description string, tags []Tag, fn func() float64) error
}

// Registration describes one gauge handed to the registry.
type Registration struct {
	Name     string
	Alias    string
	Validity Validity
	Gauge    Gauge
}

// Option customises Register.
type Option func(*options)

type options struct {
	clock    func() time.Time
	observer func(Registration)
}

// WithClock sets the clock the gauges read "today" from.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithObserver replaces the default log line emitted after each
// registration.
func WithObserver(fn func(Registration)) Option {
	return func(o *options) { o.observer = fn }
}

// LogRegistration is the default observer.
func LogRegistration(r Registration) {
	slog.Info(fmt.Sprintf("Metric %q registered", r.Name),
		"alias", r.Alias,
		"period_days", r.Validity.PeriodDays,
		"not_after", r.Validity.End.UTC().Format(time.RFC3339),
	)
}

// Register adds one gauge per entry to reg.
//
// All entries are decoded before the first registration; if any is not an
// X.509 certificate nothing is registered and the error names its alias.
func Register(entries []truststore.Entry, reg Registry, opts ...Option) error {
	o := options{clock: time.Now, observer: LogRegistration}
	for _, opt := range opts {
		opt(&o)
	}

	pending := make([]Registration, 0, len(entries))
	for _, e := range entries {
		cert, err := e.Certificate()
		if err != nil {
			return fmt.Errorf("expiry: %w", err)
		}
		v := ValidityOf(cert)
		pending = append(pending, Registration{
			Name:     NamePrefix + e.Alias,
			Alias:    e.Alias,
			Validity: v,
			Gauge:    Gauge{Alias: e.Alias, NotAfter: v.End, Clock: o.clock},
		})
	}

	for _, r := range pending {
		if err := reg.RegisterGauge(r.Name, Unit, Description, r.Validity.Tags(), r.Gauge.Value); err != nil {
			return fmt.Errorf("expiry: register %q: %w", r.Name, err)
		}
		o.observer(r)
	}
	return nil
}
