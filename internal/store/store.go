package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	workout_name   TEXT NOT NULL,
	profile        TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	started_at     REAL NOT NULL,
	completed_at   REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS execution_records (
	id                  TEXT PRIMARY KEY,
	session_id          TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position            INTEGER NOT NULL,
	segment_id          TEXT NOT NULL,
	segment_kind        TEXT NOT NULL,
	participant_id      TEXT NOT NULL,
	start_time          REAL NOT NULL,
	end_time            REAL NOT NULL,
	actual_duration     REAL NOT NULL,
	observed_metrics    TEXT NOT NULL,
	achievement_percent REAL NOT NULL,
	achievement_basis   TEXT NOT NULL,
	evaluated           INTEGER NOT NULL,
	in_zone             INTEGER NOT NULL,
	outcome             TEXT NOT NULL,
	UNIQUE(session_id, position)
);

CREATE TABLE IF NOT EXISTS participant_references (
	participant_id       TEXT PRIMARY KEY,
	max_heart_rate       REAL NOT NULL,
	threshold_heart_rate REAL NOT NULL,
	ftp                  REAL NOT NULL,
	updated_at           REAL NOT NULL
);
`

// Store persists completed sessions and participant reference values in SQLite.
type Store struct {
	db *sql.DB
}

// SessionResult is a completed run and its execution records.
type SessionResult struct {
	ID            string
	WorkoutName   string
	Profile       string
	ParticipantID string
	StartedAt     time.Time
	CompletedAt   time.Time
	Records       []recorder.ExecutionRecord
}

// SessionSummary is a session row with aggregate achievement.
type SessionSummary struct {
	ID                 string
	WorkoutName        string
	Profile            string
	ParticipantID      string
	StartedAt          time.Time
	CompletedAt        time.Time
	RecordCount        int
	AverageAchievement float64
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession writes a session and all of its records in one transaction.
func (s *Store) SaveSession(ctx context.Context, result SessionResult) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, workout_name, profile, participant_id, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.ID, result.WorkoutName, result.Profile, result.ParticipantID,
		unixFromTime(result.StartedAt), unixFromTime(result.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, rec := range result.Records {
		observed, err := json.Marshal(rec.ObservedMetrics)
		if err != nil {
			return fmt.Errorf("encode observed metrics: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO execution_records (
				id, session_id, position, segment_id, segment_kind, participant_id,
				start_time, end_time, actual_duration, observed_metrics,
				achievement_percent, achievement_basis, evaluated, in_zone, outcome
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.ID, result.ID, i, rec.SegmentID, string(rec.SegmentKind), rec.ParticipantID,
			unixFromTime(rec.StartTime), unixFromTime(rec.EndTime), rec.ActualDurationSeconds, string(observed),
			rec.TargetAchievementPercent, string(rec.Achievement.Basis), rec.Achievement.Evaluated,
			rec.Achievement.InZone, string(rec.Outcome))
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Session loads a stored session with its records in execution order.
func (s *Store) Session(ctx context.Context, id string) (SessionResult, error) {
	var result SessionResult
	var startedAt, completedAt float64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workout_name, profile, participant_id, started_at, completed_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&result.ID, &result.WorkoutName, &result.Profile, &result.ParticipantID, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionResult{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionResult{}, fmt.Errorf("scan session: %w", err)
	}
	result.StartedAt = timeFromUnix(startedAt)
	result.CompletedAt = timeFromUnix(completedAt)

	result.Records, err = s.records(ctx, id)
	if err != nil {
		return SessionResult{}, err
	}
	return result, nil
}

func (s *Store) records(ctx context.Context, sessionID string) ([]recorder.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, segment_id, segment_kind, participant_id, start_time, end_time,
			actual_duration, observed_metrics, achievement_percent, achievement_basis,
			evaluated, in_zone, outcome
		FROM execution_records
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []recorder.ExecutionRecord
	for rows.Next() {
		var rec recorder.ExecutionRecord
		var kind, observed, basis, outcome string
		var start, end float64
		if err := rows.Scan(&rec.ID, &rec.SegmentID, &kind, &rec.ParticipantID, &start, &end,
			&rec.ActualDurationSeconds, &observed, &rec.TargetAchievementPercent, &basis,
			&rec.Achievement.Evaluated, &rec.Achievement.InZone, &outcome); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.SegmentKind = workout.Kind(kind)
		rec.StartTime = timeFromUnix(start)
		rec.EndTime = timeFromUnix(end)
		rec.Achievement.Percent = rec.TargetAchievementPercent
		rec.Achievement.Basis = recorder.Basis(basis)
		rec.Outcome = recorder.Outcome(outcome)
		if err := json.Unmarshal([]byte(observed), &rec.ObservedMetrics); err != nil {
			return nil, fmt.Errorf("decode observed metrics: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentSessions lists the latest sessions first. An empty participant
// matches everyone.
func (s *Store) RecentSessions(ctx context.Context, participantID string, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.workout_name, s.profile, s.participant_id, s.started_at, s.completed_at,
			COUNT(r.id), COALESCE(AVG(r.achievement_percent), 0)
		FROM sessions s
		LEFT JOIN execution_records r ON r.session_id = s.id
		WHERE ? = '' OR s.participant_id = ?
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT ?
	`, participantID, participantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var summaries []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var startedAt, completedAt float64
		if err := rows.Scan(&sum.ID, &sum.WorkoutName, &sum.Profile, &sum.ParticipantID,
			&startedAt, &completedAt, &sum.RecordCount, &sum.AverageAchievement); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt = timeFromUnix(startedAt)
		sum.CompletedAt = timeFromUnix(completedAt)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Reference returns the stored reference values for a participant.
func (s *Store) Reference(ctx context.Context, participantID string) (zones.Reference, error) {
	var ref zones.Reference
	err := s.db.QueryRowContext(ctx, `
		SELECT max_heart_rate, threshold_heart_rate, ftp
		FROM participant_references
		WHERE participant_id = ?
	`, participantID).Scan(&ref.MaxHeartRate, &ref.ThresholdHeartRate, &ref.FTP)
	if errors.Is(err, sql.ErrNoRows) {
		return zones.Reference{}, fmt.Errorf("reference for %s: %w", participantID, ErrNotFound)
	}
	if err != nil {
		return zones.Reference{}, fmt.Errorf("scan reference: %w", err)
	}
	return ref, nil
}

// SaveReference inserts or replaces a participant's reference values.
func (s *Store) SaveReference(ctx context.Context, participantID string, ref zones.Reference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participant_references (participant_id, max_heart_rate, threshold_heart_rate, ftp, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(participant_id) DO UPDATE SET
			max_heart_rate = excluded.max_heart_rate,
			threshold_heart_rate = excluded.threshold_heart_rate,
			ftp = excluded.ftp,
			updated_at = excluded.updated_at
	`, participantID, ref.MaxHeartRate, ref.ThresholdHeartRate, ref.FTP, unixFromTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save reference: %w", err)
	}
	return nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC()
}
