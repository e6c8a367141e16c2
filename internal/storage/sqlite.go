package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zhaambo/NetscapeX-CLI/internal/analysis"
	"github.com/zhaambo/NetscapeX-CLI/internal/logging"
	"github.com/zhaambo/NetscapeX-CLI/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists analysis runs in a SQLite database with WAL mode.
// Each scored flow is kept as its report JSON next to a few indexed
// columns used for listing.
type SQLiteStore struct {
	db            *sql.DB
	retention     time.Duration
	pruneInterval time.Duration
	stopPrune     chan struct{}
	pruneWg       sync.WaitGroup
	now           func() time.Time
}

var _ ResultStore = (*SQLiteStore)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		created_ns   INTEGER NOT NULL,
		packet_count INTEGER NOT NULL,
		flow_count   INTEGER NOT NULL,
		max_risk     REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_ns)`,
	`CREATE TABLE IF NOT EXISTS flow_results (
		run_id     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		flow_id    TEXT NOT NULL,
		risk_score REAL NOT NULL,
		threat     TEXT NOT NULL,
		body       TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path,
// enables WAL mode and creates the schema. When both retention and
// pruneInterval are positive a background goroutine prunes expired runs.
func NewSQLiteStore(path string, retention, pruneInterval time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	// SQLite uses file-level locking; limit to one open connection to avoid
	// SQLITE_BUSY errors from concurrent writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:            db,
		retention:     retention,
		pruneInterval: pruneInterval,
		stopPrune:     make(chan struct{}),
		now:           time.Now,
	}

	if retention > 0 && pruneInterval > 0 {
		s.pruneWg.Add(1)
		go s.pruneLoop()
	}

	return s, nil
}

// SaveRun stores a run and its scored flows in one transaction.
func (s *SQLiteStore) SaveRun(run *model.Run) error {
	maxRisk := 0.0
	for _, r := range run.Results {
		if r.RiskScore > maxRisk {
			maxRisk = r.RiskScore
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO runs (id, source, created_ns, packet_count, flow_count, max_risk)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.CreatedAt.UTC().UnixNano(), run.PacketCount, len(run.Results), maxRisk)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO flow_results (run_id, seq, flow_id, risk_score, threat, body)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		body, err := json.Marshal(r)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode %s: %w", r.FlowID, err)
		}
		threat := analysis.ThreatType(r.DetectionResult)
		if _, err := stmt.Exec(run.ID, i, r.FlowID, r.RiskScore, threat, string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert flow result: %w", err)
		}
	}

	return tx.Commit()
}

// Runs returns stored runs, most recent first. If limit > 0, at most limit
// runs are returned.
func (s *SQLiteStore) Runs(limit int) ([]RunInfo, error) {
	query := "SELECT id, source, created_ns, packet_count, flow_count, max_risk " +
		"FROM runs ORDER BY created_ns DESC, id"

	var rows *sql.Rows
	var err error
	if limit > 0 {
		query += " LIMIT ?"
		rows, err = s.db.Query(query, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var ri RunInfo
		var createdNs int64
		if err := rows.Scan(&ri.ID, &ri.Source, &createdNs, &ri.PacketCount, &ri.FlowCount, &ri.MaxRisk); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ri.CreatedAt = time.Unix(0, createdNs).UTC()
		runs = append(runs, ri)
	}
	return runs, rows.Err()
}

// RunResults loads one run and its scored flows.
func (s *SQLiteStore) RunResults(id string) (*model.Run, error) {
	run := &model.Run{ID: id}
	var createdNs int64
	err := s.db.QueryRow("SELECT source, created_ns, packet_count FROM runs WHERE id = ?", id).
		Scan(&run.Source, &createdNs, &run.PacketCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdNs).UTC()

	rows, err := s.db.Query("SELECT body FROM flow_results WHERE run_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("query flow results: %w", err)
	}
	defer rows.Close()

	run.Results = []model.ScoredResult{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan flow result: %w", err)
		}
		var r model.ScoredResult
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode flow result: %w", err)
		}
		run.Results = append(run.Results, r)
	}
	return run, rows.Err()
}

// Prune deletes runs older than the retention period along with their
// flow results. It returns the number of runs removed.
func (s *SQLiteStore) Prune() (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-s.retention).UnixNano()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM flow_results WHERE run_id IN
		(SELECT id FROM runs WHERE created_ns < ?)`, cutoff); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prune flow results: %w", err)
	}
	result, err := tx.Exec("DELETE FROM runs WHERE created_ns < ?", cutoff)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune commit: %w", err)
	}
	return result.RowsAffected()
}

// pruneLoop runs periodic TTL-based cleanup until stopped.
func (s *SQLiteStore) pruneLoop() {
	defer s.pruneWg.Done()

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	log := logging.Default().With("storage")
	for {
		select {
		case <-ticker.C:
			deleted, err := s.Prune()
			if err != nil {
				log.Error("SQLite prune error: %v", err)
			} else if deleted > 0 {
				log.Info("SQLite pruned %d expired runs", deleted)
			}
		case <-s.stopPrune:
			return
		}
	}
}

// Close stops the pruning goroutine and closes the database.
func (s *SQLiteStore) Close() error {
	close(s.stopPrune)
	s.pruneWg.Wait()
	return s.db.Close()
}
