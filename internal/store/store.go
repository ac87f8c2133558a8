// Package store handles SQLite persistence for the content server.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/killchain/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a session has no active round.
var ErrNotFound = errors.New("not found")

// timeLayout has a fixed width so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for server-side session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			log_id TEXT NOT NULL,
			correct_phase TEXT NOT NULL,
			best_mitigation TEXT NOT NULL,
			difficulty TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			mitigation TEXT NOT NULL,
			correct INTEGER NOT NULL,
			points INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);`,
		`CREATE INDEX IF NOT EXISTS idx_results_session_id ON results(session_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertRound stores the active round of a session, creating the session on
// first use.
func (s *Store) UpsertRound(ctx context.Context, round model.RoundState) error {
	now := round.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, updated_at, log_id, correct_phase, best_mitigation, difficulty)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			log_id = excluded.log_id,
			correct_phase = excluded.correct_phase,
			best_mitigation = excluded.best_mitigation,
			difficulty = excluded.difficulty`,
		round.SessionID,
		now.UTC().Format(timeLayout),
		now.UTC().Format(timeLayout),
		round.LogID,
		round.CorrectPhase,
		round.BestMitigation,
		string(round.Difficulty),
	)
	return err
}

// GetRound returns the active round of a session or ErrNotFound.
func (s *Store) GetRound(ctx context.Context, sessionID string) (model.RoundState, error) {
	var round model.RoundState
	var difficulty, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, log_id, correct_phase, best_mitigation, difficulty, created_at, updated_at
		 FROM sessions WHERE id = ?`, sessionID,
	).Scan(&round.SessionID, &round.LogID, &round.CorrectPhase, &round.BestMitigation, &difficulty, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoundState{}, ErrNotFound
	}
	if err != nil {
		return model.RoundState{}, err
	}
	if round.LogID == "" {
		return model.RoundState{}, ErrNotFound
	}
	round.Difficulty = model.Difficulty(difficulty)
	if round.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return model.RoundState{}, err
	}
	if round.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return model.RoundState{}, err
	}
	return round, nil
}

// RecordResult appends a validated mitigation to a session's history.
func (s *Store) RecordResult(ctx context.Context, result model.RoundResult) error {
	recorded := result.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}
	correct := 0
	if result.Correct {
		correct = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (session_id, phase, mitigation, correct, points, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.SessionID,
		result.Phase,
		result.Mitigation,
		correct,
		result.Points,
		recorded.UTC().Format(timeLayout),
	)
	return err
}

// SessionStats aggregates a session's recorded results. The streak counts
// consecutive correct results ending at the latest one.
func (s *Store) SessionStats(ctx context.Context, sessionID string) (model.SessionAggregate, error) {
	agg := model.SessionAggregate{SessionID: sessionID}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM sessions WHERE id = ?`, sessionID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionAggregate{}, ErrNotFound
	}
	if err != nil {
		return model.SessionAggregate{}, err
	}
	if agg.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return model.SessionAggregate{}, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(correct), 0), COALESCE(SUM(points), 0),
			COUNT(DISTINCT CASE WHEN correct = 1 THEN phase END)
		 FROM results WHERE session_id = ?`, sessionID,
	).Scan(&agg.TotalAttempts, &agg.CorrectAttempts, &agg.Score, &agg.PhasesMastered)
	if err != nil {
		return model.SessionAggregate{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT correct FROM results WHERE session_id = ? ORDER BY id DESC`, sessionID)
	if err != nil {
		return model.SessionAggregate{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var correct int
		if err := rows.Scan(&correct); err != nil {
			return model.SessionAggregate{}, err
		}
		if correct == 0 {
			break
		}
		agg.Streak++
	}
	if err := rows.Err(); err != nil {
		return model.SessionAggregate{}, err
	}
	return agg, nil
}

// Leaderboard returns sessions with at least one result ordered by score,
// oldest first on ties.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]model.SessionAggregate, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.created_at, COUNT(r.id), COALESCE(SUM(r.correct), 0), COALESCE(SUM(r.points), 0),
			COUNT(DISTINCT CASE WHEN r.correct = 1 THEN r.phase END)
		 FROM sessions s
		 JOIN results r ON r.session_id = s.id
		 GROUP BY s.id, s.created_at
		 ORDER BY 5 DESC, s.created_at ASC, s.id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var createdAt string
		if err := rows.Scan(&agg.SessionID, &createdAt, &agg.TotalAttempts, &agg.CorrectAttempts, &agg.Score, &agg.PhasesMastered); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, err
		}
		agg.CreatedAt = parsed
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// RecentPoints returns the points of a session's last n results, oldest
// first.
func (s *Store) RecentPoints(ctx context.Context, sessionID string, n int) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT points FROM (
			SELECT id, points FROM results WHERE session_id = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, sessionID, n)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var points []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// PhaseBreakdown aggregates a session's results per phase, ordered by phase.
func (s *Store) PhaseBreakdown(ctx context.Context, sessionID string) ([]model.PhaseTally, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, COUNT(*), SUM(correct), SUM(points)
		 FROM results WHERE session_id = ?
		 GROUP BY phase
		 ORDER BY phase`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.PhaseTally
	for rows.Next() {
		var tally model.PhaseTally
		if err := rows.Scan(&tally.Phase, &tally.Attempts, &tally.Correct, &tally.Points); err != nil {
			return nil, err
		}
		result = append(result, tally)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteSession removes a session and its results.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM results WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// PruneSessions deletes sessions not updated since cutoff and returns how
// many were removed.
func (s *Store) PruneSessions(ctx context.Context, cutoff time.Time) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()
	ts := cutoff.UTC().Format(timeLayout)
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM results WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`, ts); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, ts)
	if err != nil {
		return 0, err
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
