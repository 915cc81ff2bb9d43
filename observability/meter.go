package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

func initMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the module meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Metrics holds the service's instruments.
type Metrics struct {
	recordings            metric.Int64Counter
	recordingSeconds      metric.Float64Histogram
	transcriptions        metric.Int64Counter
	transcriptionDuration metric.Float64Histogram
	submissions           metric.Int64Counter
	activeSessions        metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.recordings, err = meter.Int64Counter("voicenote.recordings",
		metric.WithDescription("Finished recordings by outcome")); err != nil {
		return nil, fmt.Errorf("creating voicenote.recordings: %w", err)
	}
	if m.recordingSeconds, err = meter.Float64Histogram("voicenote.recording.duration",
		metric.WithDescription("Recording length"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating voicenote.recording.duration: %w", err)
	}
	if m.transcriptions, err = meter.Int64Counter("transcription.requests",
		metric.WithDescription("Speech-to-text calls by provider and outcome")); err != nil {
		return nil, fmt.Errorf("creating transcription.requests: %w", err)
	}
	if m.transcriptionDuration, err = meter.Float64Histogram("transcription.duration",
		metric.WithDescription("Speech-to-text latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating transcription.duration: %w", err)
	}
	if m.submissions, err = meter.Int64Counter("contact.submissions",
		metric.WithDescription("Contact form submissions by outcome")); err != nil {
		return nil, fmt.Errorf("creating contact.submissions: %w", err)
	}
	if m.activeSessions, err = meter.Int64UpDownCounter("voicenote.sessions.active",
		metric.WithDescription("Open recording sessions")); err != nil {
		return nil, fmt.Errorf("creating voicenote.sessions.active: %w", err)
	}
	return &m, nil
}

// DefaultMetrics builds Metrics on the global meter. On error it returns
// nil, which every Record method accepts.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(Meter())
	if err != nil {
		return nil
	}
	return m
}

// RecordRecording counts a finished recording. Nil receivers are ignored.
func (m *Metrics) RecordRecording(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.recordings.Add(ctx, 1, attrs)
	m.recordingSeconds.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTranscription counts a speech-to-text call.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider), attribute.String("outcome", outcome))
	m.transcriptions.Add(ctx, 1, attrs)
	m.transcriptionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSubmission counts a contact form submission.
func (m *Metrics) RecordSubmission(ctx context.Context, outcome string, withVoiceNote bool) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("voice_note", withVoiceNote),
	))
}

// SessionOpened and SessionClosed track open recording sessions.
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m != nil {
		m.activeSessions.Add(ctx, 1)
	}
}

func (m *Metrics) SessionClosed(ctx context.Context) {
	if m != nil {
		m.activeSessions.Add(ctx, -1)
	}
}
