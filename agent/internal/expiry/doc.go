// Package expiry registers one "days until expiry" gauge per trust store
// entry.
//
// Register(entries, registry, opts...) interprets every entry as an X.509
// certificate first and aborts the whole pass on the first entry that is not
// one (ErrCertificateTypeMismatch), so a malformed store registers nothing.
// It then registers, per entry:
//
//	name         truststore.<alias>
//	unit         days
//	description  Days left until certificate expires
//	tags         validity.period.days, validity.date.start, validity.date.end
//
// The tags are computed once. The gauge value is computed by Gauge.DaysLeft
// on every read: whole days from the current UTC date at midnight to the
// certificate's notAfter, truncated toward zero and negative after expiry.
//
// The clock and the per-registration observer are injectable (WithClock,
// WithObserver) so tests can pin "today" and inspect registrations without
// parsing log output.
package expiry
