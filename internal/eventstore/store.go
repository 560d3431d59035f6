package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-voice/internal/config"
	"github.com/loqalabs/loqa-voice/internal/voice"
	_ "modernc.org/sqlite"
)

// Request status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RequestRecord is the stored history of one synthesis request.
type RequestRecord struct {
	ID          string
	Mode        string
	BaseName    string
	PromptAudio string
	Streaming   bool
	Status      string
	Segments    int
	Elapsed     time.Duration
	Error       string
	CreatedAt   time.Time
	FinishedAt  time.Time
}

// SegmentRecord is one persisted segment.
type SegmentRecord struct {
	RequestID  string
	Index      int
	Path       string
	Samples    int
	SampleRate int
	CreatedAt  time.Time
}

// ErrNotFound is returned when a request is not in the store.
var ErrNotFound = errors.New("request not found")

// Store is a SQLite-backed synthesis history. It implements voice.Recorder.
type Store struct {
	db    *sql.DB
	cfg   config.EventStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

var _ voice.Recorder = (*Store)(nil)

// Open initializes the store according to config.
func Open(ctx context.Context, cfg config.EventStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("event store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("event store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS requests (
    request_id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    base_name TEXT,
    prompt_audio TEXT,
    streaming INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    segments INTEGER NOT NULL DEFAULT 0,
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    created_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    path TEXT NOT NULL,
    samples INTEGER NOT NULL,
    sample_rate INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(request_id, seq),
    FOREIGN KEY(request_id) REFERENCES requests(request_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) disabled() bool {
	return s.cfg.RetentionMode == "ephemeral" || s.db == nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RequestStarted inserts a running request row.
func (s *Store) RequestStarted(ctx context.Context, req *voice.Request) error {
	if s.disabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests(request_id, mode, base_name, prompt_audio, streaming, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		req.ID(), req.Mode().String(), req.BaseName(), req.PromptAudioPath(), req.Streaming(), StatusRunning, s.clock().UTC())
	return err
}

// SegmentPersisted records a written segment.
func (s *Store) SegmentPersisted(ctx context.Context, requestID string, seg voice.Segment, path string) error {
	if s.disabled() {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO segments(request_id, seq, path, samples, sample_rate, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		requestID, seg.Index, path, len(seg.Samples), seg.SampleRate, s.clock().UTC())
	return err
}

// RequestFinished stores the outcome of a request.
func (s *Store) RequestFinished(ctx context.Context, requestID string, report voice.Report, runErr error) error {
	if s.disabled() {
		return nil
	}
	status := StatusCompleted
	var message sql.NullString
	if runErr != nil {
		status = StatusFailed
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, segments = ?, elapsed_ms = ?, error = ?, finished_at = ?
		 WHERE request_id = ?`,
		status, report.Segments, report.Elapsed.Milliseconds(), message, s.clock().UTC(), requestID)
	return err
}

// GetRequest loads a request by ID.
func (s *Store) GetRequest(ctx context.Context, requestID string) (RequestRecord, error) {
	if s.disabled() {
		return RequestRecord{}, ErrNotFound
	}
	var (
		rec      RequestRecord
		errText  sql.NullString
		finished sql.NullTime
		elapsed  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT request_id, mode, base_name, prompt_audio, streaming, status, segments, elapsed_ms, error, created_at, finished_at
		 FROM requests WHERE request_id = ?`, requestID).
		Scan(&rec.ID, &rec.Mode, &rec.BaseName, &rec.PromptAudio, &rec.Streaming, &rec.Status,
			&rec.Segments, &elapsed, &errText, &rec.CreatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return RequestRecord{}, ErrNotFound
	}
	if err != nil {
		return RequestRecord{}, err
	}
	rec.Elapsed = time.Duration(elapsed) * time.Millisecond
	rec.Error = errText.String
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	return rec, nil
}

// ListSegments returns the persisted segments of a request in index order.
func (s *Store) ListSegments(ctx context.Context, requestID string) ([]SegmentRecord, error) {
	if s.disabled() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, seq, path, samples, sample_rate, created_at
		 FROM segments WHERE request_id = ? ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []SegmentRecord
	for rows.Next() {
		var r SegmentRecord
		if err := rows.Scan(&r.RequestID, &r.Index, &r.Path, &r.Samples, &r.SampleRate, &r.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, r)
	}
	return segments, rows.Err()
}

// Prune applies configured retention (called on startup and can be scheduled).
func (s *Store) Prune(ctx context.Context) (err error) {
	if s.disabled() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxRequests > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE request_id IN (
			SELECT request_id FROM requests ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRequests)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
