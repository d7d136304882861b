package trackers

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/samuelfneumann/statecover/experiment/tracker"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	batch_start INTEGER NOT NULL,
	batch_end INTEGER NOT NULL,
	batch_size INTEGER NOT NULL,
	new_states INTEGER NOT NULL,
	batch_seconds REAL NOT NULL,
	ema_seconds REAL NOT NULL,
	states_per_second REAL NOT NULL,
	cumulative_states INTEGER NOT NULL,
	coverage_percent REAL NOT NULL,
	q_updates INTEGER NOT NULL,
	failures INTEGER NOT NULL,
	epsilon REAL NOT NULL,
	mean_return REAL NOT NULL,
	mean_decisions REAL NOT NULL,
	recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batches_run ON batches(run_id, batch_start);
`

const insertBatch = `
INSERT INTO batches (
	run_id, batch_start, batch_end, batch_size, new_states, batch_seconds,
	ema_seconds, states_per_second, cumulative_states, coverage_percent,
	q_updates, failures, epsilon, mean_return, mean_decisions
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite records one row per batch in the batches table of a SQLite
// database. Several runs may share a database; rows are keyed by run ID.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Track implements the tracker.Tracker interface
func (s *SQLite) Track(r tracker.Record) error {
	_, err := s.db.Exec(insertBatch,
		r.RunID, r.BatchStart, r.BatchEnd, r.BatchSize, r.NewStates,
		r.BatchSeconds, r.EMASeconds, r.StatesPerSecond, r.Cumulative,
		r.CoveragePercent, r.Updates, r.Failures, r.Epsilon, r.Return,
		r.Decisions,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Close implements the tracker.Tracker interface
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ReadSQLite returns every Record stored in the database at dbPath,
// ordered by run and first episode. The database is opened read-only and
// must already exist.
func ReadSQLite(dbPath string) ([]tracker.Record, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT run_id, batch_start, batch_end, batch_size, new_states,
			batch_seconds, ema_seconds, states_per_second, cumulative_states,
			coverage_percent, q_updates, failures, epsilon, mean_return,
			mean_decisions
		FROM batches ORDER BY run_id, batch_start`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var records []tracker.Record
	for rows.Next() {
		var r tracker.Record
		if err := rows.Scan(&r.RunID, &r.BatchStart, &r.BatchEnd,
			&r.BatchSize, &r.NewStates, &r.BatchSeconds, &r.EMASeconds,
			&r.StatesPerSecond, &r.Cumulative, &r.CoveragePercent,
			&r.Updates, &r.Failures, &r.Epsilon, &r.Return,
			&r.Decisions); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
