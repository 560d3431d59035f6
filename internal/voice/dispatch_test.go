package voice

import (
	"context"
	"errors"
	"testing"
)

func mustRequest(t *testing.T, p RequestParams) *Request {
	t.Helper()
	req, err := NewRequest(p)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDispatchRoutesByMode(t *testing.T) {
	cases := []struct {
		params RequestParams
		method string
	}{
		{RequestParams{Mode: ModeZeroShot, PromptTranscript: "transcript"}, "zero_shot"},
		{RequestParams{Mode: ModeInstruction, Instruction: "whisper"}, "instruct"},
		{RequestParams{Mode: ModeCrossLingual}, "cross_lingual"},
	}
	for _, tc := range cases {
		eng := &fakeEngine{}
		text := StaticText("text with [laughter] markers")
		tc.params.Text = text
		tc.params.Streaming = true
		tc.params.NormalizeText = true
		req := mustRequest(t, tc.params)

		if _, err := NewDispatcher(eng).Dispatch(context.Background(), req, Waveform{}); err != nil {
			t.Fatalf("%s: dispatch: %v", tc.method, err)
		}
		if len(eng.calls) != 1 {
			t.Fatalf("%s: expected one engine call, got %d", tc.method, len(eng.calls))
		}
		call := eng.calls[0]
		if call.method != tc.method {
			t.Fatalf("expected %s, got %s", tc.method, call.method)
		}
		if call.text != text {
			t.Fatalf("%s: text source not passed through", tc.method)
		}
		if !call.opts.Streaming || !call.opts.NormalizeText {
			t.Fatalf("%s: options not passed through: %+v", tc.method, call.opts)
		}
		if s, _ := call.text.Static(); s != "text with [laughter] markers" {
			t.Fatalf("%s: text altered: %q", tc.method, s)
		}
	}
}

func TestDispatchPassesModeFields(t *testing.T) {
	eng := &fakeEngine{}
	d := NewDispatcher(eng)
	zs := mustRequest(t, RequestParams{Mode: ModeZeroShot, Text: StaticText("a"), PromptTranscript: "希望你以后能够做的比我还好呦。"})
	if _, err := d.Dispatch(context.Background(), zs, Waveform{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	in := mustRequest(t, RequestParams{Mode: ModeInstruction, Text: StaticText("a"), Instruction: "用四川话说这句话"})
	if _, err := d.Dispatch(context.Background(), in, Waveform{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if eng.calls[0].transcript != "希望你以后能够做的比我还好呦。" {
		t.Fatalf("transcript not passed: %q", eng.calls[0].transcript)
	}
	if eng.calls[1].instruction != "用四川话说这句话" {
		t.Fatalf("instruction not passed: %q", eng.calls[1].instruction)
	}
}

func TestDispatchWrapsEngineStartError(t *testing.T) {
	boom := errors.New("model not loaded")
	eng := &fakeEngine{startErr: boom}
	req := mustRequest(t, RequestParams{Mode: ModeCrossLingual, Text: StaticText("a")})
	_, err := NewDispatcher(eng).Dispatch(context.Background(), req, Waveform{})
	var failure *EngineFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected EngineFailure, got %v", err)
	}
	if failure.Index != 0 || failure.Mode != ModeCrossLingual || !errors.Is(err, boom) {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestDispatchUnknownMode(t *testing.T) {
	eng := &fakeEngine{}
	req := &Request{mode: Mode(9), text: StaticText("a")}
	_, err := NewDispatcher(eng).Dispatch(context.Background(), req, Waveform{})
	var unknown *UnknownModeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownModeError, got %v", err)
	}
	if len(eng.calls) != 0 {
		t.Fatal("expected no engine call for unknown mode")
	}
}
