package eventstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-voice/internal/config"
	"github.com/loqalabs/loqa-voice/internal/voice"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRequest(t *testing.T, id string) *voice.Request {
	t.Helper()
	req, err := voice.NewRequest(voice.RequestParams{
		ID:              id,
		Text:            voice.StaticText("hello"),
		Mode:            voice.ModeCrossLingual,
		PromptAudioPath: "prompt.wav",
	})
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	if err := es.RequestStarted(ctx, newRequest(t, "r-1")); err != nil {
		t.Fatalf("ephemeral store should accept writes: %v", err)
	}
	if _, err := es.GetRequest(ctx, "r-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from ephemeral store, got %v", err)
	}
}

func TestRecordRequestLifecycle(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "voice.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	req := newRequest(t, "request-123")
	if err := es.RequestStarted(ctx, req); err != nil {
		t.Fatalf("request started: %v", err)
	}
	for i := 0; i < 2; i++ {
		seg := voice.Segment{Index: i, Samples: make([]float32, 10), SampleRate: 24000}
		if err := es.SegmentPersisted(ctx, req.ID(), seg, filepath.Join(tmp, "out", "x.wav")); err != nil {
			t.Fatalf("segment persisted: %v", err)
		}
	}
	report := voice.Report{Segments: 2, Elapsed: 1500 * time.Millisecond}
	if err := es.RequestFinished(ctx, req.ID(), report, nil); err != nil {
		t.Fatalf("request finished: %v", err)
	}

	rec, err := es.GetRequest(ctx, req.ID())
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if rec.Status != StatusCompleted || rec.Segments != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Elapsed != 1500*time.Millisecond {
		t.Fatalf("expected elapsed 1.5s, got %v", rec.Elapsed)
	}
	if rec.Mode != "cross_lingual" || rec.BaseName != "fine_grained_control" {
		t.Fatalf("unexpected mode/base: %q %q", rec.Mode, rec.BaseName)
	}

	segments, err := es.ListSegments(ctx, req.ID())
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 2 || segments[0].Index != 0 || segments[1].Index != 1 {
		t.Fatalf("unexpected segments: %+v", segments)
	}
	if segments[0].SampleRate != 24000 || segments[0].Samples != 10 {
		t.Fatalf("unexpected segment record: %+v", segments[0])
	}
}

func TestRecordFailure(t *testing.T) {
	cfg := config.EventStoreConfig{Path: filepath.Join(t.TempDir(), "voice.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	req := newRequest(t, "failing")
	if err := es.RequestStarted(ctx, req); err != nil {
		t.Fatalf("request started: %v", err)
	}
	runErr := &voice.EngineFailure{Mode: voice.ModeCrossLingual, Index: 1, Err: errors.New("boom")}
	if err := es.RequestFinished(ctx, req.ID(), voice.Report{Segments: 1}, runErr); err != nil {
		t.Fatalf("request finished: %v", err)
	}
	rec, err := es.GetRequest(ctx, req.ID())
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if rec.Status != StatusFailed || rec.Error == "" {
		t.Fatalf("expected failed status with error text, got %+v", rec)
	}
}

func TestPruneByDaysAndCount(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "voice.db"), RetentionMode: "persistent", RetentionDays: 1, MaxRequests: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.RequestStarted(ctx, newRequest(t, "old-request")); err != nil {
		t.Fatalf("request started: %v", err)
	}
	if err := es.SegmentPersisted(ctx, "old-request", voice.Segment{Index: 0, SampleRate: 24000}, "old_0.wav"); err != nil {
		t.Fatalf("segment persisted: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.RequestStarted(ctx, newRequest(t, "new-request")); err != nil {
		t.Fatalf("request started: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if _, err := es.GetRequest(ctx, "old-request"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old request pruned, got %v", err)
	}
	segments, err := es.ListSegments(ctx, "old-request")
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected old segments cascaded away, got %d", len(segments))
	}
	if _, err := es.GetRequest(ctx, "new-request"); err != nil {
		t.Fatalf("expected new request kept: %v", err)
	}
}
