package protocol

import "time"

// SynthesisRequest asks the voice service to synthesize speech. When
// Incremental is set, text arrives as TextFragment messages on
// TextSubject(RequestID) and Text is ignored.
type SynthesisRequest struct {
	RequestID        string `json:"request_id,omitempty"`
	Mode             string `json:"mode"`
	Text             string `json:"text,omitempty"`
	Incremental      bool   `json:"incremental,omitempty"`
	PromptAudioPath  string `json:"prompt_audio_path,omitempty"`
	PromptTranscript string `json:"prompt_transcript,omitempty"`
	Instruction      string `json:"instruction,omitempty"`
	Streaming        bool   `json:"streaming"`
	NormalizeText    *bool  `json:"normalize_text,omitempty"`
	BaseName         string `json:"base_name,omitempty"`
}

// SynthesisAccepted is the reply to a SynthesisRequest.
type SynthesisAccepted struct {
	RequestID string `json:"request_id"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
}

// TextFragment carries one piece of incremental text. Final closes the source.
type TextFragment struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
}

// SegmentSaved reports one persisted audio segment.
type SegmentSaved struct {
	RequestID  string    `json:"request_id"`
	Index      int       `json:"index"`
	Path       string    `json:"path"`
	SampleRate int       `json:"sample_rate"`
	Samples    int       `json:"samples"`
	Timestamp  time.Time `json:"timestamp"`
}

// SynthesisDone reports the end of a request.
type SynthesisDone struct {
	RequestID      string    `json:"request_id"`
	Completed      bool      `json:"completed"`
	Segments       int       `json:"segments"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	FirstSegmentMS int64     `json:"first_segment_ms,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisRequest = "voice.synthesize.request"
	SubjectSynthesisText    = "voice.synthesize.text"
	SubjectSegmentSaved     = "voice.synthesize.segment"
	SubjectSynthesisDone    = "voice.synthesize.done"
)

// TextSubject is the subject carrying fragments for one request.
func TextSubject(requestID string) string {
	return SubjectSynthesisText + "." + requestID
}
