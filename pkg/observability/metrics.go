// Package observability exposes run, stage and LLM metrics through the
// OpenTelemetry SDK with a Prometheus reader. The metrics endpoint is
// served by the HTTP server; this package only records.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics records workflow and model telemetry. The zero value is a
// no-op, so callers never nil-check.
type Metrics struct {
	runsStarted   metric.Int64Counter
	runsSuspended metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter

	stageDuration metric.Float64Histogram

	llmDuration metric.Float64Histogram
	llmTokens   metric.Int64Counter
	llmErrors   metric.Int64Counter
}

// Init creates the Prometheus exporter, registers it as a reader and
// builds the instrument set. The exporter registers with the default
// Prometheus registry, which the server's /metrics handler serves.
func Init() (*Metrics, error) {
	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)
	meter := meterProvider.Meter("gateflow")

	m := &Metrics{}

	if m.runsStarted, err = meter.Int64Counter(
		"gateflow_runs_started_total",
		metric.WithDescription("Total workflow runs started"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs started counter: %w", err)
	}

	if m.runsSuspended, err = meter.Int64Counter(
		"gateflow_runs_suspended_total",
		metric.WithDescription("Total workflow runs suspended awaiting a decision"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs suspended counter: %w", err)
	}

	if m.runsCompleted, err = meter.Int64Counter(
		"gateflow_runs_completed_total",
		metric.WithDescription("Total workflow runs completed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs completed counter: %w", err)
	}

	if m.runsFailed, err = meter.Int64Counter(
		"gateflow_runs_failed_total",
		metric.WithDescription("Total workflow runs failed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create runs failed counter: %w", err)
	}

	if m.stageDuration, err = meter.Float64Histogram(
		"gateflow_stage_duration_seconds",
		metric.WithDescription("Stage execution duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stage duration histogram: %w", err)
	}

	if m.llmDuration, err = meter.Float64Histogram(
		"gateflow_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmTokens, err = meter.Int64Counter(
		"gateflow_llm_tokens_used_total",
		metric.WithDescription("Total tokens used across LLM requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm tokens counter: %w", err)
	}

	if m.llmErrors, err = meter.Int64Counter(
		"gateflow_llm_errors_total",
		metric.WithDescription("Total LLM request errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	return m, nil
}
