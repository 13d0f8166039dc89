// Package session owns the capture lifecycle: it starts the recognizer, moves
// its lines onto the scheduler loop and tears everything down on stop.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/eventstore"
	"github.com/loqalabs/yapper/internal/pipeline"
	"github.com/loqalabs/yapper/internal/protocol"
	"github.com/loqalabs/yapper/internal/scheduler"
	"github.com/loqalabs/yapper/internal/sink"
	"github.com/loqalabs/yapper/internal/source"
	"github.com/loqalabs/yapper/internal/transcript"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultStopGrace = 3 * time.Second

// SinkFactory builds the sink for one session.
type SinkFactory func(sessionID string) sink.Sink

// Recorder persists session lifecycle. *eventstore.Store satisfies it.
type Recorder interface {
	BeginSession(ctx context.Context, sessionID, device string) error
	EndSession(ctx context.Context, sessionID string, emitted int) error
	AppendEvent(ctx context.Context, evt eventstore.Event) error
}

type Options struct {
	Source    source.Source
	Loop      *scheduler.Loop
	Pipeline  config.PipelineConfig
	StopGrace time.Duration
	Sinks     SinkFactory
	Recorder  Recorder
	Bus       sink.Publisher
	Metrics   *pipeline.Metrics
	Logger    *slog.Logger
}

// Status is a snapshot of the controller.
type Status struct {
	State     State
	SessionID string
	Device    string
	StartedAt time.Time
	Emitted   int
	// Pending counts sentences still inside the correction delay.
	Pending   int
}

type activeSession struct {
	id      string
	device  string
	started time.Time
	proc    source.Process
	stop    *StopToken
	span    trace.Span

	// recorded is false when the event store refused the session
	recorded bool

	producerDone chan struct{}
	teardownDone chan struct{}
}

// Controller runs at most one capture session at a time.
type Controller struct {
	src       source.Source
	loop      *scheduler.Loop
	pipe      *pipeline.Pipeline
	sinks     SinkFactory
	recorder  Recorder
	bus       sink.Publisher
	metrics   *pipeline.Metrics
	stopGrace time.Duration
	logger    *slog.Logger
	tracer    trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state State
	sess  *activeSession
}

// NewController wires a controller. parent bounds every recognizer and sink
// call the controller makes; request contexts passed to Start and Stop do not.
func NewController(parent context.Context, opts Options) *Controller {
	ctx, cancel := context.WithCancel(parent)
	grace := opts.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	sinks := opts.Sinks
	if sinks == nil {
		sinks = func(string) sink.Sink { return sink.Discard }
	}
	logger := opts.Logger.With(slog.String("component", "session"))
	return &Controller{
		src:       opts.Source,
		loop:      opts.Loop,
		pipe:      pipeline.New(opts.Pipeline, opts.Loop.NewTimer(), opts.Metrics, opts.Logger),
		sinks:     sinks,
		recorder:  opts.Recorder,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		stopGrace: grace,
		logger:    logger,
		tracer:    otel.Tracer("github.com/loqalabs/yapper/session"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the recognizer on device and begins a session.
func (c *Controller) Start(ctx context.Context, device string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return "", ErrSessionActive
	}
	if err := c.ctx.Err(); err != nil {
		return "", fmt.Errorf("controller closed: %w", err)
	}

	proc, err := c.src.Open(c.ctx, device)
	if err != nil {
		c.logger.Warn("failed to start recognizer", slog.String("device", device), slogError(err))
		return "", fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	sess := &activeSession{
		id:           uuid.NewString(),
		device:       device,
		started:      time.Now().UTC(),
		proc:         proc,
		stop:         &StopToken{},
		producerDone: make(chan struct{}),
		teardownDone: make(chan struct{}),
	}
	_, sess.span = c.tracer.Start(c.ctx, "yapper.session",
		trace.WithAttributes(
			attribute.String("session.id", sess.id),
			attribute.String("session.device", device),
		))

	if c.recorder != nil {
		if err := c.recorder.BeginSession(ctx, sess.id, device); err != nil {
			c.logger.Warn("failed to record session start, ledger off for this session",
				slog.String("session_id", sess.id), slogError(err))
		} else {
			sess.recorded = true
		}
	}

	out := c.sessionSink(sess)
	if err := c.loop.Do(func() { c.pipe.Begin(c.ctx, out) }); err != nil {
		_ = proc.Kill()
		_ = proc.Wait()
		if sess.recorded {
			_ = c.recorder.EndSession(ctx, sess.id, 0)
		}
		sess.span.End()
		return "", fmt.Errorf("begin session: %w", err)
	}

	c.announce(ctx, sess, protocol.SubjectSessionStarted, eventstore.EventSessionStarted, Recording, 0, "")

	c.state = Recording
	c.sess = sess
	go c.produce(sess)

	c.logger.Info("session started", slog.String("session_id", sess.id), slog.String("device", device))
	return sess.id, nil
}

// Stop ends the active session and waits for teardown. Calling it while idle
// or while a stop is in progress is fine.
func (c *Controller) Stop(ctx context.Context) error {
	done := c.requestStop("requested")
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports the current state. It must not be called from a sink.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{State: c.state}
	sess := c.sess
	if sess != nil {
		st.SessionID = sess.id
		st.Device = sess.device
		st.StartedAt = sess.started
	}
	c.mu.Unlock()

	if sess != nil {
		_ = c.loop.Do(func() {
			st.Emitted = c.pipe.Emitted()
			st.Pending = c.pipe.Pending()
		})
	}
	return st
}

// Devices lists the capture devices the recognizer can open.
func (c *Controller) Devices(ctx context.Context) ([]string, error) {
	devices, err := c.src.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return devices, nil
}

// Close stops any session and releases the controller.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.cancel()
	return err
}

// requestStop moves a recording session to Stopping and starts its teardown.
// It returns the channel closed when teardown is complete, or nil when idle.
func (c *Controller) requestStop(reason string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return nil
	}
	if c.state == Recording {
		c.state = Stopping
		c.logger.Info("stopping session", slog.String("session_id", sess.id), slog.String("reason", reason))
		go c.teardown(sess, reason)
	}
	return sess.teardownDone
}

// produce reads recognizer output until stop is requested or the output ends.
// It never touches pipeline state directly.
func (c *Controller) produce(sess *activeSession) {
	defer close(sess.producerDone)

	for {
		line, err := sess.proc.ReadLine()
		if sess.stop.Requested() {
			_ = sess.proc.Interrupt()
			break
		}
		if err != nil {
			c.logger.Warn("recognizer output ended", slog.String("session_id", sess.id), slogError(err))
			c.requestStop("source exited")
			break
		}

		content, ok := transcript.FilterLine(line)
		c.metrics.LineRead(c.ctx, !ok)
		if !ok {
			continue
		}
		if err := c.loop.Post(func() { c.pipe.Feed(content) }); err != nil {
			c.logger.Warn("dropping line", slog.String("session_id", sess.id), slogError(err))
			c.requestStop("scheduler closed")
			break
		}
	}
	if err := sess.proc.Wait(); err != nil {
		c.logger.Debug("recognizer exited", slog.String("session_id", sess.id), slogError(err))
	}
}

func (c *Controller) teardown(sess *activeSession, reason string) {
	sess.stop.Request()
	c.awaitProducer(sess)

	var emitted int
	if err := c.loop.Do(func() { emitted = c.pipe.Finish() }); err != nil {
		c.logger.Warn("failed to flush session", slog.String("session_id", sess.id), slogError(err))
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 5*time.Second)
	defer cancel()
	if sess.recorded {
		if err := c.recorder.EndSession(ctx, sess.id, emitted); err != nil {
			c.logger.Warn("failed to record session end", slog.String("session_id", sess.id), slogError(err))
		}
	}
	c.announce(ctx, sess, protocol.SubjectSessionStopped, eventstore.EventSessionStopped, Idle, emitted, reason)

	sess.span.SetAttributes(attribute.Int("session.emitted", emitted), attribute.String("session.stop_reason", reason))
	sess.span.End()

	c.mu.Lock()
	c.state = Idle
	c.sess = nil
	c.mu.Unlock()
	close(sess.teardownDone)

	c.logger.Info("session stopped",
		slog.String("session_id", sess.id),
		slog.Int("emitted", emitted),
		slog.String("reason", reason))
}

// awaitProducer waits for the producer to notice the stop token. A recognizer
// that stays silent gets SIGINT after the grace period and is killed after
// twice that.
func (c *Controller) awaitProducer(sess *activeSession) {
	grace := time.NewTimer(c.stopGrace)
	defer grace.Stop()
	select {
	case <-sess.producerDone:
		return
	case <-grace.C:
	}

	c.logger.Debug("interrupting recognizer", slog.String("session_id", sess.id))
	if err := sess.proc.Interrupt(); err != nil {
		c.logger.Warn("failed to interrupt recognizer", slog.String("session_id", sess.id), slogError(err))
	}
	grace.Reset(c.stopGrace)
	select {
	case <-sess.producerDone:
		return
	case <-grace.C:
	}

	c.logger.Warn("killing recognizer", slog.String("session_id", sess.id))
	if err := sess.proc.Kill(); err != nil {
		c.logger.Warn("failed to kill recognizer", slog.String("session_id", sess.id), slogError(err))
	}
	<-sess.producerDone
}

func (c *Controller) announce(ctx context.Context, sess *activeSession, subject, eventType string, state State, emitted int, reason string) {
	if !sess.recorded && c.bus == nil {
		return
	}
	msg := protocol.SessionEvent{
		SessionID: sess.id,
		Device:    sess.device,
		State:     state.String(),
		Emitted:   emitted,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Warn("failed to marshal session event", slogError(err))
		return
	}
	if sess.recorded {
		if err := c.recorder.AppendEvent(ctx, eventstore.Event{SessionID: sess.id, Type: eventType, Payload: data}); err != nil {
			c.logger.Warn("failed to record session event", slog.String("type", eventType), slogError(err))
		}
	}
	if c.bus != nil {
		if err := c.bus.Publish(subject, data); err != nil {
			c.logger.Warn("failed to publish session event", slog.String("subject", subject), slogError(err))
		}
	}
}

// sessionSink adds the ledger to the configured sinks of a recorded session
// and records every emission some sink rejected.
func (c *Controller) sessionSink(sess *activeSession) sink.Sink {
	out := c.sinks(sess.id)
	if !sess.recorded {
		return out
	}
	out = sink.Multi(out, sink.NewLedger(c.recorder, sess.id))
	return sink.Func(func(ctx context.Context, text string) error {
		err := out.Emit(ctx, text)
		if err != nil {
			c.recordSinkFailure(ctx, sess, text, err)
		}
		return err
	})
}

func (c *Controller) recordSinkFailure(ctx context.Context, sess *activeSession, text string, cause error) {
	data, err := json.Marshal(protocol.SinkFailure{
		SessionID: sess.id,
		Text:      text,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	evt := eventstore.Event{SessionID: sess.id, Type: eventstore.EventSinkFailed, Payload: data}
	if err := c.recorder.AppendEvent(ctx, evt); err != nil {
		c.logger.Warn("failed to record sink failure", slog.String("session_id", sess.id), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
