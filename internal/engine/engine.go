// Package engine provides synthesis backends for the voice orchestrator.
package engine

import (
	"fmt"
	"time"

	"github.com/loqalabs/loqa-voice/internal/config"
	"github.com/loqalabs/loqa-voice/internal/voice"
)

// New builds the engine selected by cfg.Mode.
func New(cfg config.EngineConfig) (voice.Engine, error) {
	switch cfg.Mode {
	case "mock", "":
		return NewMock(cfg.SampleRate, time.Duration(cfg.MockLatencyMS)*time.Millisecond), nil
	case "exec":
		return NewExec(cfg.Command, cfg.SampleRate, cfg.MaxSessions)
	}
	return nil, fmt.Errorf("unsupported engine mode %q", cfg.Mode)
}
