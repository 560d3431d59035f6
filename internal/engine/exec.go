package engine

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/loqalabs/loqa-voice/internal/audio"
	"github.com/loqalabs/loqa-voice/internal/voice"
	"github.com/mattn/go-shellwords"
)

const maxLineBytes = 64 << 20

// execEngine runs one worker process per request. The worker speaks JSON
// lines: it reads a start header, then answers each "next" op with either a
// segment, a done event, or need_text events asking the host for the next
// text fragment.
type execEngine struct {
	cmd        []string
	sampleRate int
	sessions   chan struct{}
}

type startOp struct {
	Op               string `json:"op"`
	Mode             string `json:"mode"`
	Text             string `json:"text,omitempty"`
	Incremental      bool   `json:"incremental"`
	PromptText       string `json:"prompt_text,omitempty"`
	Instruction      string `json:"instruction,omitempty"`
	PromptPCMBase64  string `json:"prompt_pcm_base64"`
	PromptSampleRate int    `json:"prompt_sample_rate"`
	Stream           bool   `json:"stream"`
	TextFrontend     bool   `json:"text_frontend"`
}

type hostOp struct {
	Op   string `json:"op"`
	Text string `json:"text,omitempty"`
}

type workerEvent struct {
	Event      string `json:"event"`
	PCMBase64  string `json:"pcm_base64,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Message    string `json:"message,omitempty"`
}

// NewExec parses command into a worker invocation. maxSessions bounds how
// many worker processes may run at once; extra requests wait for a slot.
func NewExec(command string, sampleRate, maxSessions int) (voice.Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command empty")
	}
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &execEngine{cmd: args, sampleRate: sampleRate, sessions: make(chan struct{}, maxSessions)}, nil
}

func (e *execEngine) SampleRate() int { return e.sampleRate }

func (e *execEngine) ZeroShot(ctx context.Context, text voice.TextSource, promptTranscript string, prompt voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return e.start(ctx, text, prompt, opts, startOp{Mode: voice.ModeZeroShot.String(), PromptText: promptTranscript})
}

func (e *execEngine) CrossLingual(ctx context.Context, text voice.TextSource, prompt voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return e.start(ctx, text, prompt, opts, startOp{Mode: voice.ModeCrossLingual.String()})
}

func (e *execEngine) Instruct(ctx context.Context, text voice.TextSource, instruction string, prompt voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return e.start(ctx, text, prompt, opts, startOp{Mode: voice.ModeInstruction.String(), Instruction: instruction})
}

func (e *execEngine) start(ctx context.Context, text voice.TextSource, prompt voice.Waveform, opts voice.Options, header startOp) (voice.Stream, error) {
	select {
	case e.sessions <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-e.sessions }

	header.Op = "start"
	header.Stream = opts.Streaming
	header.TextFrontend = opts.NormalizeText
	header.PromptPCMBase64 = base64.StdEncoding.EncodeToString(audio.EncodePCM16(prompt.Samples))
	header.PromptSampleRate = prompt.SampleRate
	if s, ok := text.Static(); ok {
		header.Text = s
	} else {
		header.Incremental = true
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		release()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		release()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		release()
		return nil, fmt.Errorf("start engine worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	s := &execStream{
		cmd:        cmd,
		stdin:      stdin,
		enc:        json.NewEncoder(stdin),
		scanner:    scanner,
		text:       text,
		sampleRate: e.sampleRate,
		release:    release,
	}
	if err := s.enc.Encode(header); err != nil {
		s.Close()
		return nil, fmt.Errorf("send start header: %w", err)
	}
	return s, nil
}

type execStream struct {
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	enc        *json.Encoder
	scanner    *bufio.Scanner
	text       voice.TextSource
	sampleRate int
	done       bool
	textEnded  bool

	closeOnce sync.Once
	release   func()
	waitErr   error
}

func (s *execStream) Next(ctx context.Context) (voice.Output, error) {
	if s.done {
		return voice.Output{}, io.EOF
	}
	if err := s.enc.Encode(hostOp{Op: "next"}); err != nil {
		return voice.Output{}, fmt.Errorf("request next segment: %w", err)
	}
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt workerEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			return voice.Output{}, fmt.Errorf("decode worker event: %w", err)
		}
		switch evt.Event {
		case "need_text":
			if err := s.feedText(ctx); err != nil {
				return voice.Output{}, err
			}
		case "segment":
			pcm, err := base64.StdEncoding.DecodeString(evt.PCMBase64)
			if err != nil {
				return voice.Output{}, fmt.Errorf("decode segment audio: %w", err)
			}
			samples, err := audio.DecodePCM16(pcm)
			if err != nil {
				return voice.Output{}, err
			}
			rate := evt.SampleRate
			if rate <= 0 {
				rate = s.sampleRate
			}
			return voice.Output{Samples: samples, SampleRate: rate}, nil
		case "done":
			s.done = true
			if err := s.wait(); err != nil {
				return voice.Output{}, fmt.Errorf("engine worker exited: %w", err)
			}
			return voice.Output{}, io.EOF
		case "error":
			return voice.Output{}, errors.New(evt.Message)
		default:
			return voice.Output{}, fmt.Errorf("unexpected worker event %q", evt.Event)
		}
	}
	if err := s.scanner.Err(); err != nil {
		return voice.Output{}, err
	}
	if err := s.wait(); err != nil {
		return voice.Output{}, fmt.Errorf("engine worker exited: %w", err)
	}
	return voice.Output{}, errors.New("engine worker exited before completing the utterance")
}

func (s *execStream) feedText(ctx context.Context) error {
	if s.textEnded {
		return s.enc.Encode(hostOp{Op: "text_end"})
	}
	fragment, err := s.text.Next(ctx)
	if err == io.EOF {
		s.textEnded = true
		return s.enc.Encode(hostOp{Op: "text_end"})
	}
	if err != nil {
		return err
	}
	return s.enc.Encode(hostOp{Op: "text", Text: fragment})
}

func (s *execStream) wait() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		s.waitErr = s.cmd.Wait()
		s.release()
	})
	return s.waitErr
}

// Close stops the worker if it is still running.
func (s *execStream) Close() error {
	if !s.done && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	err := s.wait()
	if !s.done {
		// Killed on purpose; the exit status carries no information.
		return nil
	}
	return err
}
