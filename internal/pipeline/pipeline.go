package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/sink"
	"github.com/loqalabs/yapper/internal/transcript"
)

const defaultEmitTimeout = 5 * time.Second

// Pipeline carries one session's text from fragments to the sink. Every method
// must be called from the goroutine the Scheduler fires on.
type Pipeline struct {
	seg     *transcript.Segmenter
	queue   *Queue
	sup     *transcript.Suppressor
	metrics *Metrics
	logger  *slog.Logger

	emitTimeout time.Duration

	ctx     context.Context
	sink    sink.Sink
	emitted int
}

func New(cfg config.PipelineConfig, timer Scheduler, metrics *Metrics, logger *slog.Logger) *Pipeline {
	emitTimeout := time.Duration(cfg.EmitTimeoutMS) * time.Millisecond
	if emitTimeout <= 0 {
		emitTimeout = defaultEmitTimeout
	}
	p := &Pipeline{
		seg:         transcript.NewSegmenter(cfg.MinBoundary),
		sup:         &transcript.Suppressor{},
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "pipeline")),
		emitTimeout: emitTimeout,
		ctx:         context.Background(),
		sink:        sink.Discard,
	}
	p.queue = NewQueue(timer, time.Duration(cfg.CorrectionDelayMS)*time.Millisecond, p.commit)
	return p
}

// Begin clears all session state and directs output to out. ctx bounds the
// sink calls of the session.
func (p *Pipeline) Begin(ctx context.Context, out sink.Sink) {
	p.reset()
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = sink.Discard
	}
	p.ctx = ctx
	p.sink = out
}

// Feed accepts one filtered fragment.
func (p *Pipeline) Feed(content string) {
	for _, sentence := range p.seg.Feed(content) {
		p.queue.Enqueue(sentence)
	}
}

// Finish commits pending sentences, then the unterminated remainder, and
// clears the session. It returns the number of emissions for the session.
func (p *Pipeline) Finish() int {
	p.queue.Drain()
	if rest, ok := p.seg.Flush(); ok {
		p.commit(rest)
	}
	emitted := p.emitted
	p.reset()
	p.ctx = context.Background()
	p.sink = sink.Discard
	return emitted
}

// Emitted reports how many texts reached the sink this session.
func (p *Pipeline) Emitted() int { return p.emitted }

// Pending reports the sentences waiting out the correction delay.
func (p *Pipeline) Pending() int { return p.queue.Len() }

func (p *Pipeline) reset() {
	p.queue.Reset()
	p.seg.Reset()
	p.sup.Reset()
	p.emitted = 0
}

func (p *Pipeline) commit(sentence string) {
	text := transcript.Normalize(p.sup.Suppress(sentence))
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.emitTimeout)
	defer cancel()
	if err := p.sink.Emit(ctx, text); err != nil {
		p.metrics.sinkFailed(ctx)
		p.logger.Warn("sink rejected text", slog.String("text", text), slogError(err))
		return
	}
	p.emitted++
	p.metrics.sentenceEmitted(ctx)
	p.logger.Debug("text emitted", slog.Int("emitted", p.emitted))
}
