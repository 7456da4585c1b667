package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordRunStarted counts a workflow run start.
func (m *Metrics) RecordRunStarted(ctx context.Context, workflow string) {
	if m == nil || m.runsStarted == nil {
		return
	}
	m.runsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// RecordRunSuspended counts a run pausing for a decision.
func (m *Metrics) RecordRunSuspended(ctx context.Context, workflow string) {
	if m == nil || m.runsSuspended == nil {
		return
	}
	m.runsSuspended.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// RecordRunCompleted counts a successful run.
func (m *Metrics) RecordRunCompleted(ctx context.Context, workflow string) {
	if m == nil || m.runsCompleted == nil {
		return
	}
	m.runsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// RecordRunFailed counts a failed run.
func (m *Metrics) RecordRunFailed(ctx context.Context, workflow string) {
	if m == nil || m.runsFailed == nil {
		return
	}
	m.runsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// RecordStage records a stage invocation's wall-clock duration.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordLLMRequest records one model invocation.
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, d time.Duration, tokens int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	if m.llmDuration != nil {
		m.llmDuration.Record(ctx, d.Seconds(), attrs)
	}
	if err != nil {
		if m.llmErrors != nil {
			m.llmErrors.Add(ctx, 1, attrs)
		}
		return
	}
	if m.llmTokens != nil && tokens > 0 {
		m.llmTokens.Add(ctx, int64(tokens), attrs)
	}
}
