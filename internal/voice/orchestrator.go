package voice

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/loqa-voice/voice"

// Sink persists segments of one request.
type Sink interface {
	Persist(ctx context.Context, requestID string, seg Segment) (string, error)
}

// Recorder keeps a durable history of requests. Recorder failures are logged
// and never fail the request.
type Recorder interface {
	RequestStarted(ctx context.Context, req *Request) error
	SegmentPersisted(ctx context.Context, requestID string, seg Segment, path string) error
	RequestFinished(ctx context.Context, requestID string, report Report, runErr error) error
}

// Orchestrator runs a request end to end: prompt load, dispatch, execution
// and persistence. It holds no per-request state; whether requests may run
// concurrently is decided by the engine.
type Orchestrator struct {
	engine     Engine
	loader     PromptLoader
	dispatcher *Dispatcher
	executor   *Executor
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    orchestratorMetrics
}

type orchestratorMetrics struct {
	requests     metric.Int64Counter
	segments     metric.Int64Counter
	duration     metric.Float64Histogram
	firstSegment metric.Float64Histogram
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(engine Engine, loader PromptLoader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine:     engine,
		loader:     loader,
		dispatcher: NewDispatcher(engine),
		executor:   NewExecutor(),
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("component", "orchestrator"))
	if err := o.initMetrics(otel.Meter(instrumentationName)); err != nil {
		o.logger.Warn("failed to initialize metrics", slogError(err))
	}
	return o
}

func (o *Orchestrator) initMetrics(meter metric.Meter) error {
	var err error
	if o.metrics.requests, err = meter.Int64Counter("loqa.voice.requests",
		metric.WithDescription("Synthesis requests by mode and outcome")); err != nil {
		return err
	}
	if o.metrics.segments, err = meter.Int64Counter("loqa.voice.segments",
		metric.WithDescription("Audio segments persisted")); err != nil {
		return err
	}
	if o.metrics.duration, err = meter.Float64Histogram("loqa.voice.request.duration",
		metric.WithUnit("s"), metric.WithDescription("Wall-clock time per request")); err != nil {
		return err
	}
	o.metrics.firstSegment, err = meter.Float64Histogram("loqa.voice.first_segment.latency",
		metric.WithUnit("s"), metric.WithDescription("Time until the first segment was produced"))
	return err
}

// SampleRate of the underlying engine.
func (o *Orchestrator) SampleRate() int { return o.engine.SampleRate() }

// Synthesize runs req and persists every segment through sink. On failure the
// returned report still counts the segments that were persisted.
func (o *Orchestrator) Synthesize(ctx context.Context, req *Request, sink Sink) (Report, error) {
	log := o.logger.With(slog.String("request_id", req.ID()), slog.String("mode", req.Mode().String()))
	ctx, span := o.tracer.Start(ctx, "voice.synthesize", trace.WithAttributes(
		attribute.String("voice.request_id", req.ID()),
		attribute.String("voice.mode", req.Mode().String()),
		attribute.Bool("voice.streaming", req.Streaming()),
	))
	defer span.End()

	o.record(log, func() error { return o.recordStart(ctx, req) })
	log.Info("synthesis started",
		slog.String("prompt_audio", req.PromptAudioPath()),
		slog.Bool("streaming", req.Streaming()),
		slog.Bool("normalize_text", req.NormalizeText()))

	report, err := o.run(ctx, req, sink, log)

	o.record(log, func() error { return o.recordFinish(ctx, req.ID(), report, err) })
	attrs := metric.WithAttributes(
		attribute.String("mode", req.Mode().String()),
		attribute.String("outcome", outcome(err)),
	)
	if o.metrics.requests != nil {
		o.metrics.requests.Add(ctx, 1, attrs)
	}
	if o.metrics.duration != nil {
		o.metrics.duration.Record(ctx, report.Elapsed.Seconds(), attrs)
	}
	if o.metrics.firstSegment != nil && report.Segments > 0 {
		o.metrics.firstSegment.Record(ctx, report.FirstSegment.Seconds(), attrs)
	}
	span.SetAttributes(attribute.Int("voice.segments", report.Segments))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("synthesis failed",
			slogError(err),
			slog.Int("segments", report.Segments),
			slog.Duration("elapsed", report.Elapsed))
		return report, err
	}
	log.Info("synthesis complete",
		slog.Int("segments", report.Segments),
		slog.Duration("elapsed", report.Elapsed),
		slog.Duration("first_segment", report.FirstSegment))
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, req *Request, sink Sink, log *slog.Logger) (Report, error) {
	prompt, err := o.loader.Load(req.PromptAudioPath(), PromptSampleRate)
	if err != nil {
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			err = &IOError{Op: "load prompt audio", Path: req.PromptAudioPath(), Err: err}
		}
		return Report{}, err
	}

	stream, err := o.dispatcher.Dispatch(ctx, req, prompt)
	if err != nil {
		return Report{}, err
	}

	return o.executor.Execute(ctx, req.Mode(), stream, func(ctx context.Context, seg Segment) error {
		if seg.SampleRate <= 0 {
			seg.SampleRate = o.engine.SampleRate()
		}
		path, err := sink.Persist(ctx, req.ID(), seg)
		if err != nil {
			return err
		}
		if o.metrics.segments != nil {
			o.metrics.segments.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", req.Mode().String())))
		}
		log.Info("segment saved", slog.Int("index", seg.Index), slog.String("path", path))
		o.record(log, func() error { return o.recordSegment(ctx, req.ID(), seg, path) })
		return nil
	})
}

func (o *Orchestrator) recordStart(ctx context.Context, req *Request) error {
	if o.recorder == nil {
		return nil
	}
	return o.recorder.RequestStarted(ctx, req)
}

func (o *Orchestrator) recordSegment(ctx context.Context, id string, seg Segment, path string) error {
	if o.recorder == nil {
		return nil
	}
	return o.recorder.SegmentPersisted(ctx, id, seg, path)
}

func (o *Orchestrator) recordFinish(ctx context.Context, id string, report Report, runErr error) error {
	if o.recorder == nil {
		return nil
	}
	// The request context may already be cancelled; the history row still
	// has to land.
	return o.recorder.RequestFinished(context.WithoutCancel(ctx), id, report, runErr)
}

func (o *Orchestrator) record(log *slog.Logger, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("failed to record synthesis history", slogError(err))
	}
}

func outcome(err error) string {
	var (
		validation  *ValidationError
		unknown     *UnknownModeError
		ioErr       *IOError
		engine      *EngineFailure
		persistence *PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	case errors.As(err, &persistence):
		return "persistence_error"
	case errors.As(err, &engine):
		return "engine_failure"
	case errors.As(err, &ioErr):
		return "io_error"
	case errors.As(err, &validation):
		return "validation_error"
	case errors.As(err, &unknown):
		return "unknown_mode"
	}
	return "error"
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
