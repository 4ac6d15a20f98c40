package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/san-kum/cartpole/internal/cartpole"
	"github.com/san-kum/cartpole/internal/episode"
)

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, meta RunMetadata, result *episode.Result) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	prepare(&meta, result)
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return "", err
	}
	initState, err := json.Marshal(meta.InitState)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, controller, remote, timestamp, seed, episodes, max_steps,
			init_state, total_steps, solved_at, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.Controller, meta.Remote, meta.Timestamp.UTC().Format(timeLayout),
		meta.Seed, meta.Episodes, meta.MaxSteps, string(initState), meta.TotalSteps,
		meta.SolvedAt, string(metrics))
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", meta.ID, err)
	}

	epStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO episodes (run_id, idx, steps, ret, terminated) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer epStmt.Close()
	for _, ep := range result.Episodes {
		if _, err := epStmt.ExecContext(ctx, meta.ID, ep.Index, ep.Steps, ep.Return, ep.Terminated); err != nil {
			return "", fmt.Errorf("insert episode %d: %w", ep.Index, err)
		}
	}

	if len(result.Steps) > 0 {
		stepStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO steps (run_id, episode, step, push, x, x_dot, theta, theta_dot, reward, done)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return "", err
		}
		defer stepStmt.Close()
		for _, rec := range result.Steps {
			st := rec.State
			if _, err := stepStmt.ExecContext(ctx, meta.ID, rec.Episode, rec.Step, int(rec.Action),
				st.X, st.XDot, st.Theta, st.ThetaDot, st.Reward, st.Done); err != nil {
				return "", fmt.Errorf("insert step %d/%d: %w", rec.Episode, rec.Step, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

const runColumns = `id, controller, remote, timestamp, seed, episodes, max_steps,
	init_state, total_steps, solved_at, metrics`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunMetadata, error) {
	var (
		meta      RunMetadata
		ts        string
		initState string
		metrics   string
	)
	err := row.Scan(&meta.ID, &meta.Controller, &meta.Remote, &ts, &meta.Seed, &meta.Episodes,
		&meta.MaxSteps, &initState, &meta.TotalSteps, &meta.SolvedAt, &metrics)
	if err != nil {
		return meta, err
	}

	if meta.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return meta, fmt.Errorf("run %s: timestamp: %w", meta.ID, err)
	}
	if err := json.Unmarshal([]byte(initState), &meta.InitState); err != nil {
		return meta, fmt.Errorf("run %s: init_state: %w", meta.ID, err)
	}
	if err := json.Unmarshal([]byte(metrics), &meta.Metrics); err != nil {
		return meta, fmt.Errorf("run %s: metrics: %w", meta.ID, err)
	}
	return meta, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY timestamp, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context, runID string) (*RunMetadata, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	meta, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	return &meta, nil
}

func (s *SQLiteStore) LoadEpisodes(ctx context.Context, runID string) ([]episode.Summary, error) {
	if _, err := s.Load(ctx, runID); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT idx, steps, ret, terminated FROM episodes WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := make([]episode.Summary, 0)
	for rows.Next() {
		var ep episode.Summary
		if err := rows.Scan(&ep.Index, &ep.Steps, &ep.Return, &ep.Terminated); err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func (s *SQLiteStore) LoadSteps(ctx context.Context, runID string) ([]episode.StepRecord, error) {
	if _, err := s.Load(ctx, runID); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT episode, step, push, x, x_dot, theta, theta_dot, reward, done
		FROM steps WHERE run_id = ? ORDER BY episode, step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	steps := make([]episode.StepRecord, 0)
	for rows.Next() {
		var (
			rec    episode.StepRecord
			action int
			st     cartpole.EpisodeState
		)
		if err := rows.Scan(&rec.Episode, &rec.Step, &action,
			&st.X, &st.XDot, &st.Theta, &st.ThetaDot, &st.Reward, &st.Done); err != nil {
			return nil, err
		}
		rec.Action = cartpole.Action(action)
		rec.State = st
		steps = append(steps, rec)
	}
	return steps, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			controller TEXT NOT NULL,
			remote TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			seed INTEGER NOT NULL,
			episodes INTEGER NOT NULL,
			max_steps INTEGER NOT NULL,
			init_state TEXT NOT NULL,
			total_steps INTEGER NOT NULL,
			solved_at INTEGER NOT NULL,
			metrics TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			idx INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			ret REAL NOT NULL,
			terminated INTEGER NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
		CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			step INTEGER NOT NULL,
			push INTEGER NOT NULL,
			x REAL NOT NULL,
			x_dot REAL NOT NULL,
			theta REAL NOT NULL,
			theta_dot REAL NOT NULL,
			reward INTEGER NOT NULL,
			done INTEGER NOT NULL,
			PRIMARY KEY (run_id, episode, step)
		);
	`)
	return err
}
