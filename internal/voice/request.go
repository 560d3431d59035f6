package voice

import (
	"strings"

	"github.com/google/uuid"
)

// RequestParams are the raw caller-supplied fields of a request.
type RequestParams struct {
	ID               string
	Text             TextSource
	Mode             Mode
	PromptAudioPath  string
	PromptTranscript string
	Instruction      string
	Streaming        bool
	NormalizeText    bool
	BaseName         string
}

// Request is a validated, immutable synthesis request.
type Request struct {
	id               string
	text             TextSource
	mode             Mode
	promptAudioPath  string
	promptTranscript string
	instruction      string
	streaming        bool
	normalizeText    bool
	baseName         string
}

// NewRequest validates p against the requirements of its mode. The prompt
// audio path is not checked; an unreadable file fails at load time.
func NewRequest(p RequestParams) (*Request, error) {
	if !p.Mode.Valid() {
		return nil, &UnknownModeError{Mode: p.Mode}
	}
	if p.Text == nil {
		return nil, &ValidationError{Mode: p.Mode, Field: "text"}
	}
	switch p.Mode {
	case ModeZeroShot:
		if strings.TrimSpace(p.PromptTranscript) == "" {
			return nil, &ValidationError{Mode: p.Mode, Field: "prompt_transcript"}
		}
	case ModeInstruction:
		if strings.TrimSpace(p.Instruction) == "" {
			return nil, &ValidationError{Mode: p.Mode, Field: "instruction"}
		}
	}
	if b, ok := p.Text.(interface{ bind() bool }); ok && !b.bind() {
		return nil, &ValidationError{Mode: p.Mode, Field: "text", Reason: "is already bound to another request"}
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	base := p.BaseName
	if base == "" {
		base = p.Mode.DefaultBaseName()
	}
	r := &Request{
		id:              id,
		text:            p.Text,
		mode:            p.Mode,
		promptAudioPath: p.PromptAudioPath,
		streaming:       p.Streaming,
		normalizeText:   p.NormalizeText,
		baseName:        base,
	}
	// Only the field the mode uses is carried.
	switch p.Mode {
	case ModeZeroShot:
		r.promptTranscript = p.PromptTranscript
	case ModeInstruction:
		r.instruction = p.Instruction
	}
	return r, nil
}

func (r *Request) ID() string               { return r.id }
func (r *Request) Text() TextSource         { return r.text }
func (r *Request) Mode() Mode               { return r.mode }
func (r *Request) PromptAudioPath() string  { return r.promptAudioPath }
func (r *Request) PromptTranscript() string { return r.promptTranscript }
func (r *Request) Instruction() string      { return r.instruction }
func (r *Request) Streaming() bool          { return r.streaming }
func (r *Request) NormalizeText() bool      { return r.normalizeText }
func (r *Request) BaseName() string         { return r.baseName }

// Options returns the execution flags forwarded to the engine.
func (r *Request) Options() Options {
	return Options{Streaming: r.streaming, NormalizeText: r.normalizeText}
}
