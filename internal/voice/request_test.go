package voice

import (
	"errors"
	"testing"
)

func TestNewRequestRequiresModeFields(t *testing.T) {
	cases := []struct {
		name  string
		p     RequestParams
		field string
	}{
		{"zero shot without transcript", RequestParams{Mode: ModeZeroShot, Text: StaticText("hi")}, "prompt_transcript"},
		{"instruction without instruction", RequestParams{Mode: ModeInstruction, Text: StaticText("hi")}, "instruction"},
		{"blank instruction", RequestParams{Mode: ModeInstruction, Text: StaticText("hi"), Instruction: "  "}, "instruction"},
		{"missing text", RequestParams{Mode: ModeCrossLingual}, "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := NewRequest(tc.p)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
			if req != nil {
				t.Fatal("expected no request on validation failure")
			}
		})
	}
}

func TestNewRequestAcceptsValidModes(t *testing.T) {
	for _, p := range []RequestParams{
		{Mode: ModeZeroShot, Text: StaticText("hi"), PromptTranscript: "prompt words"},
		{Mode: ModeInstruction, Text: StaticText("hi"), Instruction: "speak softly<|endofprompt|>"},
		{Mode: ModeCrossLingual, Text: StaticText("hi")},
	} {
		if _, err := NewRequest(p); err != nil {
			t.Fatalf("mode %s: unexpected error %v", p.Mode, err)
		}
	}
}

func TestNewRequestUnknownMode(t *testing.T) {
	_, err := NewRequest(RequestParams{Mode: Mode(4), Text: StaticText("hi")})
	var unknown *UnknownModeError
	if !errors.As(err, &unknown) || unknown.Mode != Mode(4) {
		t.Fatalf("expected UnknownModeError for mode 4, got %v", err)
	}
}

func TestNewRequestDefaults(t *testing.T) {
	req, err := NewRequest(RequestParams{Mode: ModeCrossLingual, Text: StaticText("hi"), PromptAudioPath: "p.wav", Streaming: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID() == "" {
		t.Fatal("expected a generated request id")
	}
	if req.BaseName() != "fine_grained_control" {
		t.Fatalf("unexpected default base name %q", req.BaseName())
	}
	if req.PromptAudioPath() != "p.wav" || !req.Streaming() {
		t.Fatalf("fields not carried: %+v", req)
	}
	if opts := req.Options(); !opts.Streaming || opts.NormalizeText {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestNewRequestCarriesOnlyModeFields(t *testing.T) {
	req, err := NewRequest(RequestParams{
		Mode:             ModeCrossLingual,
		Text:             StaticText("hi"),
		PromptTranscript: "ignored",
		Instruction:      "ignored",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.PromptTranscript() != "" || req.Instruction() != "" {
		t.Fatalf("cross-lingual request should carry neither transcript nor instruction")
	}
}

func TestIncrementalTextBindsOnce(t *testing.T) {
	src := IncrementalText(FragmentSlice("a"))
	if _, err := NewRequest(RequestParams{Mode: ModeCrossLingual, Text: src}); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	_, err := NewRequest(RequestParams{Mode: ModeCrossLingual, Text: src})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "text" {
		t.Fatalf("expected ValidationError on second bind, got %v", err)
	}
}

func TestFailedValidationDoesNotBindText(t *testing.T) {
	src := IncrementalText(FragmentSlice("a"))
	if _, err := NewRequest(RequestParams{Mode: ModeInstruction, Text: src}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := NewRequest(RequestParams{Mode: ModeInstruction, Text: src, Instruction: "calm"}); err != nil {
		t.Fatalf("source should still be usable: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"1": ModeZeroShot, "zero_shot": ModeZeroShot,
		"2": ModeInstruction, "Instruct": ModeInstruction,
		"3": ModeCrossLingual, "cross-lingual": ModeCrossLingual,
	} {
		got, err := ParseMode(input)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", input, got, err)
		}
	}
	if _, err := ParseMode("4"); err == nil {
		t.Fatal("expected error for mode 4")
	}
}
