// Package service exposes the orchestrator on the message bus.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-voice/internal/bus"
	"github.com/loqalabs/loqa-voice/internal/config"
	"github.com/loqalabs/loqa-voice/internal/output"
	"github.com/loqalabs/loqa-voice/internal/protocol"
	"github.com/loqalabs/loqa-voice/internal/voice"
	"github.com/nats-io/nats.go"
)

// Service accepts synthesis requests over NATS. Each request writes into its
// own directory under output.directory, so concurrent requests never share
// segment paths. At most service.max_concurrency requests run at once; the
// rest wait in arrival order.
type Service struct {
	cfg    config.Config
	bus    *bus.Client
	orch   *voice.Orchestrator
	writer voice.AudioWriter
	sub    *nats.Subscription
	sem    chan struct{}
	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
	clock  func() time.Time
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, orch *voice.Orchestrator, writer voice.AudioWriter, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	concurrency := cfg.Service.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		orch:   orch,
		writer: writer,
		sem:    make(chan struct{}, concurrency),
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "voice-service")),
		clock:  time.Now,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Service.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSynthesisRequest, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe synthesis requests: %w", err)
	}
	s.sub = sub
	return nil
}

// Close stops intake and interrupts running requests.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Service.Enabled || s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var in protocol.SynthesisRequest
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		s.logger.Warn("failed to decode synthesis request", slogError(err))
		s.reply(msg, protocol.SynthesisAccepted{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}
	// The ID names a subject token and an output directory.
	if strings.ContainsAny(in.RequestID, `./\*> `) {
		s.reply(msg, protocol.SynthesisAccepted{RequestID: in.RequestID, Error: "request_id must be a single subject token"})
		return
	}

	var (
		text    voice.TextSource
		textSub *nats.Subscription
	)
	if in.Incremental {
		sub, err := s.subscribeText(in.RequestID)
		if err != nil {
			s.logger.Warn("failed to subscribe text fragments", slogError(err))
			s.reply(msg, protocol.SynthesisAccepted{RequestID: in.RequestID, Error: err.Error()})
			return
		}
		textSub = sub
		text = voice.IncrementalText(fragmentsFrom(sub))
	} else {
		text = voice.StaticText(in.Text)
	}

	req, err := s.buildRequest(in, text)
	if err != nil {
		if textSub != nil {
			_ = textSub.Unsubscribe()
		}
		s.logger.Warn("rejected synthesis request", slog.String("request_id", in.RequestID), slogError(err))
		s.reply(msg, protocol.SynthesisAccepted{RequestID: in.RequestID, Error: err.Error()})
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if textSub != nil {
			_ = textSub.Unsubscribe()
		}
		s.reply(msg, protocol.SynthesisAccepted{RequestID: req.ID(), Error: "service is shutting down"})
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	s.reply(msg, protocol.SynthesisAccepted{RequestID: req.ID(), Accepted: true})
	go func() {
		defer s.wg.Done()
		if textSub != nil {
			defer textSub.Unsubscribe()
		}
		s.run(req)
	}()
}

func (s *Service) buildRequest(in protocol.SynthesisRequest, text voice.TextSource) (*voice.Request, error) {
	mode, err := voice.ParseMode(in.Mode)
	if err != nil {
		return nil, err
	}
	promptPath := in.PromptAudioPath
	if promptPath == "" {
		promptPath = s.cfg.Prompt.AudioPath
	}
	transcript := in.PromptTranscript
	if transcript == "" && mode == voice.ModeZeroShot {
		transcript = s.cfg.Prompt.Transcript
	}
	normalize := false
	if in.NormalizeText != nil {
		normalize = *in.NormalizeText
	}
	return voice.NewRequest(voice.RequestParams{
		ID:               in.RequestID,
		Text:             text,
		Mode:             mode,
		PromptAudioPath:  promptPath,
		PromptTranscript: transcript,
		Instruction:      in.Instruction,
		Streaming:        in.Streaming,
		NormalizeText:    normalize,
		BaseName:         in.BaseName,
	})
}

func (s *Service) run(req *voice.Request) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		s.publishDone(req.ID(), voice.Report{}, fmt.Errorf("%w before start: %w", voice.ErrInterrupted, s.ctx.Err()))
		return
	}
	defer func() { <-s.sem }()

	dir := filepath.Join(s.cfg.Output.Directory, req.ID())
	sink := &publishingSink{
		Sink:    output.NewSink(dir, req.BaseName(), s.cfg.Output.Extension, s.writer),
		service: s,
	}
	report, err := s.orch.Synthesize(s.ctx, req, sink)
	s.publishDone(req.ID(), report, err)
}

func (s *Service) publishDone(requestID string, report voice.Report, runErr error) {
	done := protocol.SynthesisDone{
		RequestID: requestID,
		Completed: runErr == nil,
		Segments:  report.Segments,
		ElapsedMS: report.Elapsed.Milliseconds(),
		Timestamp: s.clock().UTC(),
	}
	if report.Segments > 0 {
		done.FirstSegmentMS = report.FirstSegment.Milliseconds()
	}
	if runErr != nil {
		done.Error = runErr.Error()
	}
	if err := s.bus.PublishJSON(protocol.SubjectSynthesisDone, done); err != nil {
		s.logger.Warn("failed to publish synthesis done", slogError(err))
	}
}

func (s *Service) reply(msg *nats.Msg, ack protocol.SynthesisAccepted) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(ack)
	if err != nil {
		s.logger.Warn("failed to marshal reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to reply to synthesis request", slogError(err))
	}
}

// publishingSink announces every persisted segment on the bus.
type publishingSink struct {
	*output.Sink
	service *Service
}

func (p *publishingSink) Persist(ctx context.Context, requestID string, seg voice.Segment) (string, error) {
	path, err := p.Sink.Persist(ctx, requestID, seg)
	if err != nil {
		return path, err
	}
	event := protocol.SegmentSaved{
		RequestID:  requestID,
		Index:      seg.Index,
		Path:       path,
		SampleRate: seg.SampleRate,
		Samples:    len(seg.Samples),
		Timestamp:  p.service.clock().UTC(),
	}
	if err := p.service.bus.PublishJSON(protocol.SubjectSegmentSaved, event); err != nil {
		p.service.logger.Warn("failed to publish segment event", slogError(err))
	}
	return path, nil
}

// subscribeText opens the fragment subject of one request. Fragments queue
// without limit until the engine asks for them.
func (s *Service) subscribeText(requestID string) (*nats.Subscription, error) {
	sub, err := s.bus.Conn().SubscribeSync(protocol.TextSubject(requestID))
	if err != nil {
		return nil, err
	}
	if err := sub.SetPendingLimits(-1, -1); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// fragmentsFrom turns TextFragment messages into a fragment producer. A
// fragment flagged final ends the sequence after its own text.
func fragmentsFrom(sub *nats.Subscription) voice.FragmentProducer {
	finished := false
	return voice.FragmentFunc(func(ctx context.Context) (string, error) {
		for {
			if finished {
				return "", io.EOF
			}
			msg, err := sub.NextMsgWithContext(ctx)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}
				return "", fmt.Errorf("receive text fragment: %w", err)
			}
			var frag protocol.TextFragment
			if err := json.Unmarshal(msg.Data, &frag); err != nil {
				return "", fmt.Errorf("decode text fragment: %w", err)
			}
			if frag.Final {
				finished = true
			}
			if frag.Text != "" {
				return frag.Text, nil
			}
		}
	})
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

