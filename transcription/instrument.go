package transcription

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/observability"
)

type instrumented struct {
	Provider
	metrics *observability.Metrics
	log     *logger.Logger
}

// Instrument wraps p with a span, a latency histogram, an outcome counter
// and a log line per call.
func Instrument(p Provider, metrics *observability.Metrics) Provider {
	return &instrumented{
		Provider: p,
		metrics:  metrics,
		log:      logger.WithComponent("transcription").WithFields(map[string]interface{}{logger.FieldProvider: p.Name()}),
	}
}

func (i *instrumented) Transcribe(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanTranscribe,
		attribute.String("provider", i.Name()),
		attribute.String("audio.format", string(req.Audio.Format)),
		attribute.Int("audio.size", req.Audio.Size()),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
		}
		elapsed := time.Since(start)
		i.metrics.RecordTranscription(ctx, i.Name(), outcome, elapsed)
		observability.EndSpan(span, err)

		fields := map[string]interface{}{
			logger.FieldFormat:    string(req.Audio.Format),
			logger.FieldSizeBytes: req.Audio.Size(),
			logger.FieldDuration:  elapsed.Milliseconds(),
			logger.FieldStatus:    outcome,
		}
		if err != nil {
			i.log.WithContext(ctx).WithError(err).Warn("transcription failed", fields)
			return
		}
		fields["chars"] = len(resp.Text)
		i.log.WithContext(ctx).Info("transcription finished", fields)
	}()
	return i.Provider.Transcribe(ctx, req)
}
