package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a lookup for an unknown meeting id.
var ErrNotFound = errors.New("meeting not found")

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	started_at       REAL NOT NULL,
	ended_at         REAL,
	duration_seconds REAL NOT NULL DEFAULT 0,
	audio_path       TEXT NOT NULL DEFAULT '',
	transcript       TEXT NOT NULL DEFAULT '',
	summary_json     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	fail_reason      TEXT NOT NULL DEFAULT '',
	created_at       REAL NOT NULL,
	updated_at       REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS transcript_lines (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	meeting_id     TEXT NOT NULL REFERENCES meetings(id),
	seq            INTEGER NOT NULL,
	offset_seconds REAL NOT NULL,
	text           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	created_at     REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lines_meeting ON transcript_lines(meeting_id, kind, seq);
`

// Store is a read-write handle on the meetnotes SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path with WAL journaling
// and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRecord inserts a new meeting record.
func (s *Store) CreateRecord(rec Record) error {
	now := unixFloat(s.now())
	_, err := s.db.Exec(`
		INSERT INTO meetings (id, title, started_at, duration_seconds, audio_path,
			transcript, summary_json, status, fail_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Title, unixFloat(rec.StartedAt), rec.DurationSeconds, rec.AudioPath,
		rec.Transcript, rec.SummaryJSON, rec.Status, rec.FailReason, now, now)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// UpdateRecord applies a partial update to an existing meeting. Only the
// patch's non-nil fields change; the last write wins per field.
func (s *Store) UpdateRecord(id string, patch Patch) error {
	sets := []string{"updated_at = ?"}
	args := []any{unixFloat(s.now())}

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.EndedAt != nil {
		add("ended_at", unixFloat(*patch.EndedAt))
	}
	if patch.DurationSeconds != nil {
		add("duration_seconds", *patch.DurationSeconds)
	}
	if patch.AudioPath != nil {
		add("audio_path", *patch.AudioPath)
	}
	if patch.Transcript != nil {
		add("transcript", *patch.Transcript)
	}
	if patch.SummaryJSON != nil {
		add("summary_json", *patch.SummaryJSON)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.FailReason != nil {
		add("fail_reason", *patch.FailReason)
	}

	args = append(args, id)
	res, err := s.db.Exec("UPDATE meetings SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update meeting rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRecord returns one meeting by id.
func (s *Store) GetRecord(id string) (Record, error) {
	row := s.db.QueryRow(`
		SELECT id, title, started_at, ended_at, duration_seconds, audio_path,
			transcript, summary_json, status, fail_reason, created_at, updated_at
		FROM meetings
		WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListRecords returns all meetings, most recently started first.
func (s *Store) ListRecords() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT id, title, started_at, ended_at, duration_seconds, audio_path,
			transcript, summary_json, status, fail_reason, created_at, updated_at
		FROM meetings
		ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query meetings: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AppendLiveFragment stores one provisional live transcript line.
func (s *Store) AppendLiveFragment(meetingID string, offsetSeconds float64, text string) error {
	return s.appendLine(meetingID, offsetSeconds, text, KindLive)
}

// AppendFinalTranscriptLine stores one confirmed final transcript line.
func (s *Store) AppendFinalTranscriptLine(meetingID string, offsetSeconds float64, text string) error {
	return s.appendLine(meetingID, offsetSeconds, text, KindFinal)
}

func (s *Store) appendLine(meetingID string, offsetSeconds float64, text string, kind string) error {
	_, err := s.db.Exec(`
		INSERT INTO transcript_lines (meeting_id, seq, offset_seconds, text, kind, created_at)
		VALUES (?,
			COALESCE((SELECT MAX(seq) FROM transcript_lines WHERE meeting_id = ? AND kind = ?), -1) + 1,
			?, ?, ?, ?)
	`, meetingID, meetingID, kind, offsetSeconds, text, kind, unixFloat(s.now()))
	if err != nil {
		return fmt.Errorf("insert transcript line: %w", err)
	}
	return nil
}

// ClearLiveLines removes a meeting's provisional live lines, typically right
// before the final lines are written.
func (s *Store) ClearLiveLines(meetingID string) error {
	_, err := s.db.Exec(`DELETE FROM transcript_lines WHERE meeting_id = ? AND kind = ?`,
		meetingID, KindLive)
	if err != nil {
		return fmt.Errorf("delete live lines: %w", err)
	}
	return nil
}

// Lines returns a meeting's transcript lines of one kind, in sequence order.
func (s *Store) Lines(meetingID string, kind string) ([]Line, error) {
	rows, err := s.db.Query(`
		SELECT id, meeting_id, seq, offset_seconds, text, kind, created_at
		FROM transcript_lines
		WHERE meeting_id = ? AND kind = ?
		ORDER BY seq ASC
	`, meetingID, kind)
	if err != nil {
		return nil, fmt.Errorf("query transcript lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		var createdAt float64
		if err := rows.Scan(&line.ID, &line.MeetingID, &line.Seq, &line.OffsetSeconds,
			&line.Text, &line.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript line: %w", err)
		}
		line.CreatedAt = timeFromUnix(createdAt)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var startedAt, createdAt, updatedAt float64
	var endedAt sql.NullFloat64

	err := row.Scan(&rec.ID, &rec.Title, &startedAt, &endedAt, &rec.DurationSeconds,
		&rec.AudioPath, &rec.Transcript, &rec.SummaryJSON, &rec.Status, &rec.FailReason,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan meeting: %w", err)
	}

	rec.StartedAt = timeFromUnix(startedAt)
	rec.CreatedAt = timeFromUnix(createdAt)
	rec.UpdatedAt = timeFromUnix(updatedAt)
	if endedAt.Valid {
		t := timeFromUnix(endedAt.Float64)
		rec.EndedAt = &t
	}
	return rec, nil
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
