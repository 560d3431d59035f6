package voice

import (
	"context"
	"errors"
)

// Dispatcher maps a request's mode onto the matching engine entry point.
type Dispatcher struct {
	engine Engine
}

func NewDispatcher(engine Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch starts the engine call for req. The text source is handed to the
// engine as-is; inline control markers are not interpreted here.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, prompt Waveform) (Stream, error) {
	if req == nil {
		return nil, errors.New("dispatch: nil request")
	}
	opts := req.Options()

	var (
		stream Stream
		err    error
	)
	switch req.Mode() {
	case ModeZeroShot:
		stream, err = d.engine.ZeroShot(ctx, req.Text(), req.PromptTranscript(), prompt, opts)
	case ModeCrossLingual:
		stream, err = d.engine.CrossLingual(ctx, req.Text(), prompt, opts)
	case ModeInstruction:
		stream, err = d.engine.Instruct(ctx, req.Text(), req.Instruction(), prompt, opts)
	default:
		return nil, &UnknownModeError{Mode: req.Mode()}
	}
	if err != nil {
		return nil, &EngineFailure{Mode: req.Mode(), Index: 0, Err: err}
	}
	return stream, nil
}
