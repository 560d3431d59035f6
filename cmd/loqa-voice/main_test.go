package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-voice/internal/audio"
)

func writePrompt(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.wav")
	samples := make([]float32, 1600)
	if err := audio.NewWAVWriter().Write(path, samples, 16000); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestVersionAndModes(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	if code != 0 || strings.TrimSpace(out) != version {
		t.Fatalf("unexpected version output: %d %q", code, out)
	}
	code, out, _ = runCLI(t, "", "modes")
	if code != 0 {
		t.Fatalf("modes exited %d", code)
	}
	for _, want := range []string{"1\tzero_shot\tzero_shot", "2\tinstruct\tinstruct", "3\tcross_lingual\tfine_grained_control"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in modes output, got %q", want, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if code, _, _ := runCLI(t, "", "speak"); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if code, _, _ := runCLI(t, ""); code != 2 {
		t.Fatalf("expected exit 2 without command, got %d", code)
	}
}

func TestSynthCrossLingualBatch(t *testing.T) {
	prompt := writePrompt(t)
	out := t.TempDir()
	code, stdout, stderr := runCLI(t, "", "synth",
		"-mode", "3",
		"-text", "在他讲述那个荒诞故事的过程中，他突然[laughter]停下来。",
		"-prompt-audio", prompt,
		"-output", out)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr)
	}
	files := listDir(t, out)
	if len(files) != 1 || files[0] != "fine_grained_control_0.wav" {
		t.Fatalf("unexpected files: %v", files)
	}
	if !strings.Contains(stdout, "1 segment(s)") {
		t.Fatalf("expected summary line, got %q", stdout)
	}
}

func TestSynthStdinStreaming(t *testing.T) {
	prompt := writePrompt(t)
	out := t.TempDir()
	code, _, stderr := runCLI(t, "收到好友从远方寄来的生日礼物，\n那份意外的惊喜\n\n让我心中充满了甜蜜的快乐。\n", "synth",
		"-mode", "zero_shot",
		"-text-stdin",
		"-stream",
		"-prompt-audio", prompt,
		"-output", out)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr)
	}
	files := listDir(t, out)
	want := []string{"zero_shot_0.wav", "zero_shot_1.wav", "zero_shot_2.wav"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
	}
}

func TestSynthTextFileUsesStem(t *testing.T) {
	prompt := writePrompt(t)
	out := t.TempDir()
	textFile := filepath.Join(t.TempDir(), "story.txt")
	if err := os.WriteFile(textFile, []byte("Once upon a time.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runCLI(t, "", "synth", "-mode", "3", "-text-file", textFile, "-prompt-audio", prompt, "-output", out)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, stderr)
	}
	if files := listDir(t, out); len(files) != 1 || files[0] != "story_0.wav" {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestSynthInstructionRequired(t *testing.T) {
	prompt := writePrompt(t)
	out := filepath.Join(t.TempDir(), "out")
	code, _, stderr := runCLI(t, "", "synth", "-mode", "2", "-text", "hello", "-prompt-audio", prompt, "-output", out)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "instruction") {
		t.Fatalf("expected instruction error, got %q", stderr)
	}
	if files := listDir(t, out); len(files) != 0 {
		t.Fatalf("expected no output, got %v", files)
	}
}

func TestSynthRequiresExactlyOneInput(t *testing.T) {
	if code, _, _ := runCLI(t, "", "synth", "-mode", "3"); code != 2 {
		t.Fatalf("expected usage exit without text, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "synth", "-mode", "3", "-text", "a", "-text-stdin"); code != 2 {
		t.Fatalf("expected usage exit with two inputs, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "synth", "-mode", "9", "-text", "a"); code != 2 {
		t.Fatalf("expected usage exit for unknown mode, got %d", code)
	}
}

func TestSynthMissingPromptAudio(t *testing.T) {
	out := t.TempDir()
	code, _, _ := runCLI(t, "", "synth", "-mode", "3", "-text", "hello",
		"-prompt-audio", filepath.Join(t.TempDir(), "missing.wav"), "-output", out)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if files := listDir(t, out); len(files) != 0 {
		t.Fatalf("expected no output, got %v", files)
	}
}

func TestSynthFrontendOffByDefault(t *testing.T) {
	var opts synthOptions
	if err := synthFlags(&opts, io.Discard).Parse([]string{"-text", "hello"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.frontend {
		t.Fatal("expected text normalization off unless -frontend is given")
	}
	opts = synthOptions{}
	if err := synthFlags(&opts, io.Discard).Parse([]string{"-text", "hello", "-frontend"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !opts.frontend {
		t.Fatal("expected -frontend to enable text normalization")
	}
}
