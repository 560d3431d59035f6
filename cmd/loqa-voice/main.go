package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/loqa-voice/internal/voice"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "expected 'synth', 'modes' or 'version'")
		return 2
	}

	switch args[0] {
	case "synth":
		return runSynth(ctx, args[1:], stdin, stdout, stderr)
	case "modes":
		for _, m := range voice.Modes() {
			fmt.Fprintf(stdout, "%d\t%s\t%s\n", int(m), m, m.DefaultBaseName())
		}
		return 0
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		return 2
	}
}
