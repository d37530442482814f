package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add lookup indices for run history",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_runs_workload ON load_test_runs(workload);
			CREATE INDEX IF NOT EXISTS idx_load_runs_base_url ON load_test_runs(base_url);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_runs_workload;
			DROP INDEX IF EXISTS idx_load_runs_base_url;
		`,
	},
	{
		Version: 2,
		Name:    "Add endpoint index for cross-run comparisons",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_load_endpoint_stats_endpoint ON load_test_endpoint_stats(endpoint);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_load_endpoint_stats_endpoint;
		`,
	},
}

// InitSchema creates all tables required for run history.
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS load_test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_uuid TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL,
		workload TEXT NOT NULL,
		users INTEGER NOT NULL,
		duration_sec REAL NOT NULL,
		started_at DATETIME NOT NULL,
		elapsed_sec REAL NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0,
		total_requests INTEGER NOT NULL DEFAULT 0,
		successful_requests INTEGER NOT NULL DEFAULT 0,
		failed_requests INTEGER NOT NULL DEFAULT 0,
		throughput_rps REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_test_runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS load_test_endpoint_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		count INTEGER NOT NULL,
		avg_sec REAL NOT NULL,
		min_sec REAL NOT NULL,
		max_sec REAL NOT NULL,
		p50_sec REAL NOT NULL,
		p95_sec REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_endpoint_stats_run_id ON load_test_endpoint_stats(run_id);

	CREATE TABLE IF NOT EXISTS load_test_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES load_test_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_load_errors_run_id ON load_test_errors(run_id, seq);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
