// Package metrics connects expiry gauges to a Prometheus registry and reads
// them back in text exposition format.
//
// Registry implements expiry.Registry on top of a prometheus.Registerer: each
// gauge becomes a prometheus.GaugeFunc whose callback runs at every Gather,
// with the gauge tags as constant labels. Dotted names are converted to
// Prometheus names the same way a Prometheus naming convention treats meter
// names: invalid characters become "_" and the base unit is appended
// (truststore.my-ca + days → truststore_my_ca_days).
//
// WriteText encodes gathered families with expfmt for the agent's -once mode.
// Fetch and ParseText read a text exposition back (the agent's -scrape mode),
// and GaugeValues flattens the families into name → value.
package metrics
