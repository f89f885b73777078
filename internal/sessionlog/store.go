package sessionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/myrjola/runcoach/internal/coach"
	"github.com/myrjola/runcoach/internal/sqlite"
)

// Store keeps feedback and unplanned sessions in the local database, keyed by the backend user id.
type Store struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewStore(db *sqlite.Database, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// SaveFeedback stores fb for its session date, replacing earlier feedback for the same day. The returned record
// carries the stored id.
func (s *Store) SaveFeedback(ctx context.Context, userID string, fb coach.SessionFeedback) (coach.SessionFeedback, error) {
	var id string
	err := s.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO session_feedback (id, user_id, session_date, avg_heart_rate, max_heart_rate,
		                              perceived_exertion, notes, completed_as_planned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, session_date) DO UPDATE SET
			avg_heart_rate       = excluded.avg_heart_rate,
			max_heart_rate       = excluded.max_heart_rate,
			perceived_exertion   = excluded.perceived_exertion,
			notes                = excluded.notes,
			completed_as_planned = excluded.completed_as_planned,
			updated_at           = STRFTIME('%Y-%m-%dT%H:%M:%fZ')
		RETURNING id`,
		uuid.NewString(), userID, fb.SessionDate, fb.AvgHeartRate, fb.MaxHeartRate,
		fb.PerceivedExertion, fb.Notes, fb.CompletedAsPlanned).Scan(&id)
	if err != nil {
		return coach.SessionFeedback{}, fmt.Errorf("upsert feedback for %s: %w", fb.SessionDate, err)
	}
	fb.ID = id
	return fb, nil
}

// Feedback returns the runner's feedback keyed by session date.
func (s *Store) Feedback(ctx context.Context, userID string) (_ map[string]coach.SessionFeedback, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT id, session_date, avg_heart_rate, max_heart_rate, perceived_exertion, notes, completed_as_planned
		FROM session_feedback
		WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	feedback := make(map[string]coach.SessionFeedback)
	for rows.Next() {
		var (
			fb                   coach.SessionFeedback
			avgHR, maxHR, effort sql.NullInt64
		)
		if err = rows.Scan(&fb.ID, &fb.SessionDate, &avgHR, &maxHR, &effort, &fb.Notes,
			&fb.CompletedAsPlanned); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		fb.AvgHeartRate = nullInt(avgHR)
		fb.MaxHeartRate = nullInt(maxHR)
		fb.PerceivedExertion = nullInt(effort)
		feedback[fb.SessionDate] = fb
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return feedback, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// AddUnplanned stores a new unplanned session with its interval sets and returns it with its generated id.
func (s *Store) AddUnplanned(ctx context.Context, userID string, us coach.UnplannedSession) (coach.UnplannedSession, error) {
	us.ID = uuid.NewString()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unplanned_sessions (id, user_id, session_date, run_type, distance_km, duration_minutes,
			                                avg_pace, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			us.ID, userID, us.Date, string(us.RunType), us.DistanceKm, us.DurationMinutes, us.AvgPace, us.Notes); err != nil {
			return fmt.Errorf("insert unplanned session: %w", err)
		}
		for i, set := range us.Intervals {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO unplanned_session_intervals (session_id, position, reps, distance_meters, target_pace,
				                                         recovery_seconds)
				VALUES (?, ?, ?, ?, ?, ?)`,
				us.ID, i, set.Reps, set.DistanceMeters, set.TargetPace, set.RecoverySeconds); err != nil {
				return fmt.Errorf("insert interval %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return coach.UnplannedSession{}, fmt.Errorf("add unplanned session on %s: %w", us.Date, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "stored unplanned session",
		slog.String("session_date", us.Date), slog.Int("intervals", len(us.Intervals)))
	return us, nil
}

// Unplanned returns the runner's unplanned sessions keyed by date, each day in logging order.
func (s *Store) Unplanned(ctx context.Context, userID string) (map[string][]coach.UnplannedSession, error) {
	sessions, err := s.unplannedSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.intervals(ctx, userID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]coach.UnplannedSession)
	for _, us := range sessions {
		us.Intervals = intervals[us.ID]
		byDate[us.Date] = append(byDate[us.Date], us)
	}
	return byDate, nil
}

func (s *Store) unplannedSessions(ctx context.Context, userID string) (_ []coach.UnplannedSession, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT id, session_date, run_type, distance_km, duration_minutes, avg_pace, notes
		FROM unplanned_sessions
		WHERE user_id = ?
		ORDER BY session_date, created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query unplanned sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var sessions []coach.UnplannedSession
	for rows.Next() {
		var (
			us       coach.UnplannedSession
			runType  string
			duration sql.NullInt64
		)
		if err = rows.Scan(&us.ID, &us.Date, &runType, &us.DistanceKm, &duration, &us.AvgPace, &us.Notes); err != nil {
			return nil, fmt.Errorf("scan unplanned session row: %w", err)
		}
		us.RunType = coach.RunType(runType)
		us.DurationMinutes = nullInt(duration)
		sessions = append(sessions, us)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return sessions, nil
}

func (s *Store) intervals(ctx context.Context, userID string) (_ map[string][]coach.IntervalSet, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT i.session_id, i.reps, i.distance_meters, i.target_pace, i.recovery_seconds
		FROM unplanned_session_intervals i
		JOIN unplanned_sessions s ON s.id = i.session_id
		WHERE s.user_id = ?
		ORDER BY i.session_id, i.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	intervals := make(map[string][]coach.IntervalSet)
	for rows.Next() {
		var (
			sessionID string
			set       coach.IntervalSet
			recovery  sql.NullInt64
		)
		if err = rows.Scan(&sessionID, &set.Reps, &set.DistanceMeters, &set.TargetPace, &recovery); err != nil {
			return nil, fmt.Errorf("scan interval row: %w", err)
		}
		set.RecoverySeconds = nullInt(recovery)
		intervals[sessionID] = append(intervals[sessionID], set)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return intervals, nil
}
