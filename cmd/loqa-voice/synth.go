package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/loqalabs/loqa-voice/internal/audio"
	"github.com/loqalabs/loqa-voice/internal/config"
	"github.com/loqalabs/loqa-voice/internal/engine"
	"github.com/loqalabs/loqa-voice/internal/llm"
	"github.com/loqalabs/loqa-voice/internal/output"
	"github.com/loqalabs/loqa-voice/internal/voice"
)

type synthOptions struct {
	configPath  string
	mode        string
	text        string
	textFile    string
	textStdin   bool
	llmPrompt   string
	promptAudio string
	promptText  string
	instruction string
	stream      bool
	frontend    bool
	name        string
	output      string
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func runSynth(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts synthOptions
	fs := synthFlags(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := synthesize(ctx, opts, stdin, stdout, stderr); err != nil {
		fmt.Fprintln(stderr, err)
		var usage usageError
		if errors.As(err, &usage) {
			return 2
		}
		return 1
	}
	return 0
}

func synthFlags(opts *synthOptions, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.mode, "mode", "zero_shot", "Synthesis mode: 1|zero_shot, 2|instruct, 3|cross_lingual")
	fs.StringVar(&opts.text, "text", "", "Text to synthesize")
	fs.StringVar(&opts.textFile, "text-file", "", "Read the text to synthesize from a file")
	fs.BoolVar(&opts.textStdin, "text-stdin", false, "Synthesize stdin incrementally, one fragment per line")
	fs.StringVar(&opts.llmPrompt, "llm-prompt", "", "Synthesize a language model completion of this prompt as it streams")
	fs.StringVar(&opts.promptAudio, "prompt-audio", "", "Prompt audio path (defaults to prompt.audio_path)")
	fs.StringVar(&opts.promptText, "prompt-text", "", "Transcript of the prompt audio (zero_shot, defaults to prompt.transcript)")
	fs.StringVar(&opts.instruction, "instruction", "", "Style instruction (instruct mode)")
	fs.BoolVar(&opts.stream, "stream", false, "Write a segment per engine chunk instead of one file")
	fs.BoolVar(&opts.frontend, "frontend", false, "Apply engine text normalization")
	fs.StringVar(&opts.name, "name", "", "Output base name (defaults per mode or to the text file stem)")
	fs.StringVar(&opts.output, "output", "", "Output directory (defaults to output.directory)")
	return fs
}

func synthesize(ctx context.Context, opts synthOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Telemetry.LogLevel)}))

	mode, err := voice.ParseMode(opts.mode)
	if err != nil {
		return usageError{msg: err.Error()}
	}

	text, baseName, cleanup, err := textSource(ctx, opts, cfg, stdin)
	if err != nil {
		return err
	}
	defer cleanup()
	if opts.name != "" {
		baseName = opts.name
	}

	promptAudio := opts.promptAudio
	if promptAudio == "" {
		promptAudio = cfg.Prompt.AudioPath
	}
	promptText := opts.promptText
	if promptText == "" && mode == voice.ModeZeroShot {
		promptText = cfg.Prompt.Transcript
	}

	req, err := voice.NewRequest(voice.RequestParams{
		Text:             text,
		Mode:             mode,
		PromptAudioPath:  promptAudio,
		PromptTranscript: promptText,
		Instruction:      opts.instruction,
		Streaming:        opts.stream,
		NormalizeText:    opts.frontend,
		BaseName:         baseName,
	})
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg.Engine)
	if err != nil {
		return err
	}
	logger.Info("engine initialized", slog.String("engine", cfg.Engine.Mode), slog.Int("sample_rate", eng.SampleRate()))

	outDir := opts.output
	if outDir == "" {
		outDir = cfg.Output.Directory
	}
	sink := output.NewSink(outDir, req.BaseName(), cfg.Output.Extension, audio.NewWAVWriter())
	orch := voice.NewOrchestrator(eng, audio.NewWAVLoader(), voice.WithLogger(logger))

	report, err := orch.Synthesize(ctx, req, sink)
	for _, path := range sink.Paths() {
		fmt.Fprintln(stdout, path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d segment(s) in %.3fs\n", report.Segments, report.Elapsed.Seconds())
	return nil
}

// textSource resolves the text flags to a source and the base name it
// implies. Exactly one input flag must be set.
func textSource(ctx context.Context, opts synthOptions, cfg config.Config, stdin io.Reader) (voice.TextSource, string, func(), error) {
	noop := func() {}
	set := 0
	for _, on := range []bool{opts.text != "", opts.textFile != "", opts.textStdin, opts.llmPrompt != ""} {
		if on {
			set++
		}
	}
	if set != 1 {
		return nil, "", noop, usageError{msg: "exactly one of -text, -text-file, -text-stdin or -llm-prompt is required"}
	}

	switch {
	case opts.textFile != "":
		data, err := os.ReadFile(opts.textFile)
		if err != nil {
			return nil, "", noop, &voice.IOError{Op: "read text file", Path: opts.textFile, Err: err}
		}
		stem := strings.TrimSuffix(filepath.Base(opts.textFile), filepath.Ext(opts.textFile))
		return voice.StaticText(strings.TrimSpace(string(data))), stem, noop, nil
	case opts.textStdin:
		return voice.IncrementalText(voice.FragmentLines(stdin)), "", noop, nil
	case opts.llmPrompt != "":
		gen, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, "", noop, err
		}
		fragments := llm.StreamFragments(ctx, gen, llm.RequestFromConfig(cfg.LLM, opts.llmPrompt))
		return voice.IncrementalText(fragments), "", fragments.Close, nil
	}
	return voice.StaticText(opts.text), "", noop, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
