package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-voice/internal/voice"
)

// DefaultExtension is used when NewSink gets an empty extension.
const DefaultExtension = "wav"

// Sink writes the segments of one request as <dir>/<base>_<index>.<ext>.
type Sink struct {
	dir    string
	base   string
	ext    string
	writer voice.AudioWriter

	mu    sync.Mutex
	next  int
	paths []string
}

// NewSink returns a sink for a single request. The directory is created on
// the first write.
func NewSink(dir, base, ext string, writer voice.AudioWriter) *Sink {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return &Sink{dir: dir, base: base, ext: ext, writer: writer}
}

// PathFor returns the output path of segment index.
func (s *Sink) PathFor(index int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d.%s", s.base, index, s.ext))
}

// Persist writes seg. Indices must arrive in order starting at 0. The audio
// is written to a temporary file and renamed into place, so an interrupted
// write never leaves a truncated segment under its final name.
func (s *Sink) Persist(_ context.Context, _ string, seg voice.Segment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.PathFor(seg.Index)
	if seg.Index != s.next {
		return "", &voice.PersistenceError{
			Path:  path,
			Index: seg.Index,
			Err:   fmt.Errorf("out of order segment, expected index %d", s.next),
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &voice.PersistenceError{Path: path, Index: seg.Index,
			Err: &voice.IOError{Op: "create output dir", Path: s.dir, Err: err}}
	}

	tmp := path + ".part"
	if err := s.writer.Write(tmp, seg.Samples, seg.SampleRate); err != nil {
		_ = os.Remove(tmp)
		var ioErr *voice.IOError
		if !errors.As(err, &ioErr) {
			err = &voice.IOError{Op: "write audio", Path: tmp, Err: err}
		}
		return "", &voice.PersistenceError{Path: path, Index: seg.Index, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", &voice.PersistenceError{Path: path, Index: seg.Index,
			Err: &voice.IOError{Op: "rename", Path: tmp, Err: err}}
	}

	s.next++
	s.paths = append(s.paths, path)
	return path, nil
}

// Paths lists persisted segment paths in index order.
func (s *Sink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Dir returns the output directory.
func (s *Sink) Dir() string { return s.dir }
