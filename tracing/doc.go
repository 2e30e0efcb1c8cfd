// Package tracing records OpenTelemetry spans around build expansion,
// preparation and test runs. Spans are no-ops until Init installs an exporter.
package tracing
