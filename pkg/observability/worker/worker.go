package worker

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// JobInstrumenter traces and times background jobs such as scheduled sweeps.
type JobInstrumenter struct {
	tracer      trace.Tracer
	jobsActive  metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
	jobsTotal   metric.Int64Counter
}

func NewJobInstrumenter(tracer trace.Tracer, meter metric.Meter, serviceName string) (*JobInstrumenter, error) {
	jobsActive, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_jobs_active", serviceName),
		metric.WithDescription("Number of background jobs in progress"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_job_duration_seconds", serviceName),
		metric.WithDescription("Background job duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	jobsTotal, err := meter.Int64Counter(
		fmt.Sprintf("%s_jobs_total", serviceName),
		metric.WithDescription("Total background jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	return &JobInstrumenter{
		tracer:      tracer,
		jobsActive:  jobsActive,
		jobDuration: jobDuration,
		jobsTotal:   jobsTotal,
	}, nil
}

// InstrumentJob runs fn inside a span and records its outcome.
func (w *JobInstrumenter) InstrumentJob(ctx context.Context, jobType string, fn func(context.Context) error) error {
	w.jobsActive.Add(ctx, 1)
	defer w.jobsActive.Add(ctx, -1)

	ctx, span := w.tracer.Start(ctx, "job."+jobType,
		trace.WithAttributes(attribute.String("job.type", jobType)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("job.type", jobType),
		attribute.String("status", status),
	)
	w.jobDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	w.jobsTotal.Add(ctx, 1, attrs)

	return err
}
