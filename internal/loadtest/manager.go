package loadtest

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/loadtest/internal/migrations"
)

// Manager handles run history persistence
type Manager struct {
	db *sql.DB
}

// NewManager opens (or creates) the run history database
func NewManager(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases and SQLite writes consistent
	db.SetMaxOpenConns(1)

	m := &Manager{db: db}

	// Run database migrations (includes schema initialization)
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return m, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// SaveReport stores a finished run with its endpoint statistics and errors
// in a single transaction and sets report.ID
func (m *Manager) SaveReport(report *Report) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO load_test_runs
		(run_uuid, base_url, workload, users, duration_sec, started_at, elapsed_sec, interrupted,
		 total_requests, successful_requests, failed_requests, throughput_rps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.BaseURL, string(report.Workload), report.Users, report.DurationSeconds,
		report.StartedAt, report.ElapsedSeconds, report.Interrupted,
		report.TotalRequests, report.SuccessfulRequests, report.FailedRequests, report.Throughput)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	statsStmt, err := tx.Prepare(`
		INSERT INTO load_test_endpoint_stats
		(run_id, endpoint, count, avg_sec, min_sec, max_sec, p50_sec, p95_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statsStmt.Close()

	for _, e := range report.Endpoints {
		if _, err := statsStmt.Exec(id, e.Endpoint, e.Count, e.Avg, e.Min, e.Max, e.P50, e.P95); err != nil {
			return fmt.Errorf("failed to insert endpoint stats: %w", err)
		}
	}

	errStmt, err := tx.Prepare(`INSERT INTO load_test_errors (run_id, seq, message) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer errStmt.Close()

	for i, msg := range report.Errors {
		if _, err := errStmt.Exec(id, i, msg); err != nil {
			return fmt.Errorf("failed to insert error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	report.ID = id
	return nil
}

const runColumns = `
	id, run_uuid, base_url, workload, users, duration_sec, started_at, elapsed_sec, interrupted,
	total_requests, successful_requests, failed_requests, throughput_rps
`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one load_test_runs row into a report
func scanRun(row rowScanner) (*Report, error) {
	r := &Report{}
	var workload string
	err := row.Scan(&r.ID, &r.RunID, &r.BaseURL, &workload, &r.Users, &r.DurationSeconds,
		&r.StartedAt, &r.ElapsedSeconds, &r.Interrupted,
		&r.TotalRequests, &r.SuccessfulRequests, &r.FailedRequests, &r.Throughput)
	if err != nil {
		return nil, err
	}
	r.Workload = Workload(workload)
	r.SuccessRate = percentOf(r.SuccessfulRequests, r.TotalRequests)
	r.FailureRate = percentOf(r.FailedRequests, r.TotalRequests)
	r.Endpoints = []EndpointStats{}
	r.Errors = []string{}
	return r, nil
}

// GetRun retrieves a run with its endpoint statistics and errors
func (m *Manager) GetRun(id int64) (*Report, error) {
	r, err := scanRun(m.db.QueryRow(`SELECT `+runColumns+` FROM load_test_runs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	rows, err := m.db.Query(`
		SELECT endpoint, count, avg_sec, min_sec, max_sec, p50_sec, p95_sec
		FROM load_test_endpoint_stats
		WHERE run_id = ?
		ORDER BY avg_sec, endpoint
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e EndpointStats
		if err := rows.Scan(&e.Endpoint, &e.Count, &e.Avg, &e.Min, &e.Max, &e.P50, &e.P95); err != nil {
			return nil, err
		}
		r.Endpoints = append(r.Endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	errRows, err := m.db.Query(`SELECT message FROM load_test_errors WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer errRows.Close()

	for errRows.Next() {
		var msg string
		if err := errRows.Scan(&msg); err != nil {
			return nil, err
		}
		r.Errors = append(r.Errors, msg)
	}
	return r, errRows.Err()
}

// ListRuns returns run summaries, newest first. Endpoint statistics and
// errors are not loaded.
func (m *Manager) ListRuns(limit int) ([]*Report, error) {
	query := `SELECT ` + runColumns + ` FROM load_test_runs ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Report
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and everything recorded for it
func (m *Manager) DeleteRun(id int64) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM load_test_errors WHERE run_id = ?",
		"DELETE FROM load_test_endpoint_stats WHERE run_id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete run data: %w", err)
		}
	}

	result, err := tx.Exec("DELETE FROM load_test_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d: %w", id, sql.ErrNoRows)
	}
	return tx.Commit()
}
