package results

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/boristopalov/timetravel/pkg/core"
)

// Store indexes runs and their episodes in a sqlite database.
type Store struct {
	db *sql.DB
}

type Run struct {
	ID          string
	Name        string
	Environment string
	Episodes    int
	Seed        int64
	// Config is the JSON encoded experiment configuration.
	Config    string
	StartedAt time.Time
}

type Episode struct {
	RunID    string
	Episode  int
	Return   float64
	Steps    int
	Branched bool
	Outcome  core.Outcome
}

type Summary struct {
	Episodes    int
	MeanReturn  float64
	StdReturn   float64
	BranchRate  float64
	SuccessRate float64
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			environment TEXT NOT NULL,
			episodes INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			config TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			total_return REAL NOT NULL,
			steps INTEGER NOT NULL,
			branched INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			PRIMARY KEY (run_id, episode)
		);`,
		`CREATE INDEX IF NOT EXISTS episodes_outcome ON episodes(run_id, outcome);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, environment, episodes, seed, config, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Environment, r.Episodes, r.Seed, r.Config, r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) RecordEpisode(ctx context.Context, e Episode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (run_id, episode, total_return, steps, branched, outcome) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Episode, e.Return, e.Steps, boolInt(e.Branched), e.Outcome.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to record episode %d of run %s: %w", e.Episode, e.RunID, err)
	}
	return nil
}

func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	var r Run
	var started string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, environment, episodes, seed, config, started_at FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Environment, &r.Episodes, &r.Seed, &r.Config, &started)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt, err = time.Parse(time.RFC3339Nano, started)
	return r, err
}

// Episodes returns the recorded episodes of a run in order.
func (s *Store) Episodes(ctx context.Context, runID string) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT episode, total_return, steps, branched, outcome FROM episodes WHERE run_id = ? ORDER BY episode`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		e := Episode{RunID: runID}
		var branched int
		var outcome string
		if err := rows.Scan(&e.Episode, &e.Return, &e.Steps, &branched, &outcome); err != nil {
			return nil, err
		}
		e.Branched = branched != 0
		if err := e.Outcome.UnmarshalText([]byte(outcome)); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates the episodes of a run. Success means the episode
// terminated on the goal or the reward door, or by stopping on the goal.
func (s *Store) Summary(ctx context.Context, runID string) (Summary, error) {
	var sum Summary
	var mean, meanSq, branched, success sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			AVG(total_return),
			AVG(total_return * total_return),
			AVG(branched),
			AVG(CASE WHEN outcome IN (?, ?, ?) THEN 1.0 ELSE 0.0 END)
		FROM episodes WHERE run_id = ?`,
		core.OutcomeGoal.String(), core.OutcomeStopped.String(), core.OutcomeDoorOpened.String(), runID,
	).Scan(&sum.Episodes, &mean, &meanSq, &branched, &success)
	if err != nil {
		return Summary{}, err
	}
	if sum.Episodes == 0 {
		return sum, nil
	}
	sum.MeanReturn = mean.Float64
	sum.StdReturn = math.Sqrt(math.Max(0, meanSq.Float64-mean.Float64*mean.Float64))
	sum.BranchRate = branched.Float64
	sum.SuccessRate = success.Float64
	return sum, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
