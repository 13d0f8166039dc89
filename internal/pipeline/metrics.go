package pipeline

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics counts transcript traffic. A nil *Metrics records nothing.
type Metrics struct {
	linesRead     metric.Int64Counter
	linesFiltered metric.Int64Counter
	emitted       metric.Int64Counter
	sinkFailures  metric.Int64Counter
}

func NewMetrics(logger *slog.Logger) *Metrics {
	meter := otel.Meter("github.com/loqalabs/yapper/pipeline")
	m := &Metrics{}
	var err error
	if m.linesRead, err = meter.Int64Counter("yapper.lines.read", metric.WithDescription("Lines read from the transcription source")); err != nil {
		logger.Warn("failed to create counter", slog.String("name", "yapper.lines.read"), slogError(err))
	}
	if m.linesFiltered, err = meter.Int64Counter("yapper.lines.filtered", metric.WithDescription("Lines discarded as diagnostics or annotations")); err != nil {
		logger.Warn("failed to create counter", slog.String("name", "yapper.lines.filtered"), slogError(err))
	}
	if m.emitted, err = meter.Int64Counter("yapper.sentences.emitted", metric.WithDescription("Sentences delivered to the sink")); err != nil {
		logger.Warn("failed to create counter", slog.String("name", "yapper.sentences.emitted"), slogError(err))
	}
	if m.sinkFailures, err = meter.Int64Counter("yapper.sink.failures", metric.WithDescription("Sink emissions that returned an error")); err != nil {
		logger.Warn("failed to create counter", slog.String("name", "yapper.sink.failures"), slogError(err))
	}
	return m
}

// LineRead records one raw source line and whether the filter dropped it.
func (m *Metrics) LineRead(ctx context.Context, dropped bool) {
	if m == nil {
		return
	}
	add(ctx, m.linesRead)
	if dropped {
		add(ctx, m.linesFiltered)
	}
}

func (m *Metrics) sentenceEmitted(ctx context.Context) {
	if m != nil {
		add(ctx, m.emitted)
	}
}

func (m *Metrics) sinkFailed(ctx context.Context) {
	if m != nil {
		add(ctx, m.sinkFailures)
	}
}

func add(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
