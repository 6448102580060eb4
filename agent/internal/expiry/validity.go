package expiry

import (
	"crypto/x509"
	"strconv"
	"time"
)

// Tag keys attached to every expiry gauge.
const (
	TagPeriodDays = "validity.period.days"
	TagDateStart  = "validity.date.start"
	TagDateEnd    = "validity.date.end"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// Tag is a static key/value pair attached to a metric.
type Tag struct {
	Key   string
	Value string
}

// Validity is the static validity window of a certificate.
type Validity struct {
	PeriodDays int64
	Start      time.Time
	End        time.Time
}

// ValidityOf computes the validity metadata of cert.
func ValidityOf(cert *x509.Certificate) Validity {
	return Validity{
		PeriodDays: DaysBetween(cert.NotBefore, cert.NotAfter),
		Start:      cert.NotBefore,
		End:        cert.NotAfter,
	}
}

// Tags renders v as metric tags. Dates are RFC 3339 in UTC.
func (v Validity) Tags() []Tag {
	return []Tag{
		{Key: TagPeriodDays, Value: strconv.FormatInt(v.PeriodDays, 10)},
		{Key: TagDateStart, Value: v.Start.UTC().Format(time.RFC3339)},
		{Key: TagDateEnd, Value: v.End.UTC().Format(time.RFC3339)},
	}
}

// DaysBetween returns the whole days from a to b, truncated toward zero.
// It works on millisecond timestamps so far-future notAfter values (year
// 9999) do not overflow time.Duration.
func DaysBetween(a, b time.Time) int64 {
	return (b.UnixMilli() - a.UnixMilli()) / msPerDay
}

// Gauge computes the days left for one certificate.
type Gauge struct {
	Alias    string
	NotAfter time.Time
	Clock    func() time.Time
}

// DaysLeft returns the whole days between today at 00:00 UTC and NotAfter.
// The result is negative once the certificate has expired.
func (g Gauge) DaysLeft() int64 {
	return DaysBetween(midnightUTC(g.now()), g.NotAfter)
}

// Value adapts DaysLeft to a metric callback.
func (g Gauge) Value() float64 {
	return float64(g.DaysLeft())
}

func (g Gauge) now() time.Time {
	if g.Clock == nil {
		return time.Now()
	}
	return g.Clock()
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
