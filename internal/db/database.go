package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"race-strategy-engine/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = errors.New("run not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite works best with single writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		samples INTEGER NOT NULL,
		target_race_laps INTEGER NOT NULL,
		pit_loss_s REAL NOT NULL,
		base_lap_time_s REAL NOT NULL,
		effective_deg_rate REAL NOT NULL,
		raw_rate REAL NOT NULL,
		base_deg REAL NOT NULL,
		mean_stress REAL NOT NULL,
		max_stress REAL NOT NULL,
		stress_norm REAL NOT NULL,
		warmup_laps INTEGER NOT NULL,
		fit_laps INTEGER NOT NULL,
		floor_applied INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lap_metrics (
		run_id TEXT NOT NULL,
		lap INTEGER NOT NULL,
		lap_time_s REAL NOT NULL,
		avg_speed REAL NOT NULL,
		avg_tire_temp REAL NOT NULL,
		brake_density REAL NOT NULL,
		high_slip_density REAL NOT NULL,
		traction_loss_density REAL NOT NULL,
		tire_stress REAL NOT NULL,
		samples INTEGER NOT NULL,
		PRIMARY KEY (run_id, lap),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS strategy_results (
		run_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		stints TEXT NOT NULL,
		total_time_s REAL NOT NULL,
		stops INTEGER NOT NULL,
		laps_covered INTEGER NOT NULL,
		coverage_mismatch INTEGER NOT NULL,
		PRIMARY KEY (run_id, rank),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_warnings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		strategy TEXT,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_run_warnings_run_id ON run_warnings(run_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// InsertRun stores a run and its full report in one transaction
func (db *Database) InsertRun(run *models.Run) error {
	if run.Report == nil {
		return fmt.Errorf("run %s has no report", run.ID)
	}
	r := run.Report
	m := r.Model

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs
		(id, name, created_at, samples, target_race_laps, pit_loss_s, base_lap_time_s,
		 effective_deg_rate, raw_rate, base_deg, mean_stress, max_stress, stress_norm,
		 warmup_laps, fit_laps, floor_applied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Name, run.CreatedAt, run.Samples, r.TargetRaceLaps, r.PitLossS, m.BaseLapTimeS,
		m.EffectiveDegRateSPerLap, m.RawRateSPerLap, m.BaseDegSPerLap, m.MeanStress, m.MaxStress, m.StressNorm,
		m.WarmupLaps, m.FitLaps, m.NegativeSlopeFloorApplied,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	lapStmt, err := tx.Prepare(`
		INSERT INTO lap_metrics
		(run_id, lap, lap_time_s, avg_speed, avg_tire_temp, brake_density,
		 high_slip_density, traction_loss_density, tire_stress, samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer lapStmt.Close()

	for _, lm := range r.Metrics {
		_, err := lapStmt.Exec(run.ID, lm.Lap, lm.LapTimeS, lm.AvgSpeed, lm.AvgTireTemp, lm.BrakeDensity,
			lm.HighSlipDensity, lm.TractionLossDensity, lm.TireStress, lm.Samples)
		if err != nil {
			return fmt.Errorf("insert lap %d: %w", lm.Lap, err)
		}
	}

	resStmt, err := tx.Prepare(`
		INSERT INTO strategy_results
		(run_id, rank, strategy, stints, total_time_s, stops, laps_covered, coverage_mismatch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer resStmt.Close()

	for i, res := range r.Results {
		_, err := resStmt.Exec(run.ID, i+1, res.Strategy, res.Stints, res.TotalTimeS, res.Stops,
			res.LapsCovered, res.CoverageMismatch)
		if err != nil {
			return fmt.Errorf("insert result %q: %w", res.Strategy, err)
		}
	}

	for _, w := range r.Warnings {
		_, err := tx.Exec(`INSERT INTO run_warnings (run_id, kind, strategy, message) VALUES (?, ?, ?, ?)`,
			run.ID, string(w.Kind), w.Strategy, w.Message)
		if err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	return tx.Commit()
}

const summaryQuery = `
	SELECT r.id, r.name, r.created_at, r.samples, r.target_race_laps, r.pit_loss_s,
	       r.base_lap_time_s, r.effective_deg_rate,
	       (SELECT COUNT(*) FROM lap_metrics l WHERE l.run_id = r.id),
	       COALESCE((SELECT s.strategy FROM strategy_results s WHERE s.run_id = r.id AND s.rank = 1), ''),
	       COALESCE((SELECT s.total_time_s FROM strategy_results s WHERE s.run_id = r.id AND s.rank = 1), 0),
	       (SELECT COUNT(*) FROM run_warnings w WHERE w.run_id = r.id)
	FROM runs r
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scanner) (models.RunSummary, error) {
	var s models.RunSummary
	err := row.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.Samples, &s.TargetRaceLaps, &s.PitLossS,
		&s.BaseLapTimeS, &s.EffectiveDegRateSPerLap, &s.Laps, &s.BestStrategy, &s.BestTotalTimeS, &s.Warnings)
	return s, err
}

// ListRuns returns run summaries, newest first
func (db *Database) ListRuns(limit, offset int) ([]models.RunSummary, error) {
	query := summaryQuery + " ORDER BY r.created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run with its full report
func (db *Database) GetRun(id string) (*models.Run, error) {
	summary, err := scanSummary(db.conn.QueryRow(summaryQuery+" WHERE r.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		TargetRaceLaps: summary.TargetRaceLaps,
		PitLossS:       summary.PitLossS,
	}
	m := &report.Model
	err = db.conn.QueryRow(`
		SELECT base_lap_time_s, effective_deg_rate, raw_rate, base_deg, mean_stress, max_stress,
		       stress_norm, warmup_laps, fit_laps, floor_applied
		FROM runs WHERE id = ?
	`, id).Scan(&m.BaseLapTimeS, &m.EffectiveDegRateSPerLap, &m.RawRateSPerLap, &m.BaseDegSPerLap,
		&m.MeanStress, &m.MaxStress, &m.StressNorm, &m.WarmupLaps, &m.FitLaps, &m.NegativeSlopeFloorApplied)
	if err != nil {
		return nil, err
	}

	if report.Metrics, err = db.GetLapMetrics(id); err != nil {
		return nil, err
	}
	if report.Results, err = db.GetStrategyResults(id); err != nil {
		return nil, err
	}
	if report.Warnings, err = db.getWarnings(id); err != nil {
		return nil, err
	}

	return &models.Run{RunSummary: summary, Report: report}, nil
}

// GetLapMetrics returns a run's lap metrics in lap order
func (db *Database) GetLapMetrics(runID string) ([]models.LapMetric, error) {
	rows, err := db.conn.Query(`
		SELECT lap, lap_time_s, avg_speed, avg_tire_temp, brake_density,
		       high_slip_density, traction_loss_density, tire_stress, samples
		FROM lap_metrics WHERE run_id = ? ORDER BY lap
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LapMetric
	for rows.Next() {
		var lm models.LapMetric
		if err := rows.Scan(&lm.Lap, &lm.LapTimeS, &lm.AvgSpeed, &lm.AvgTireTemp, &lm.BrakeDensity,
			&lm.HighSlipDensity, &lm.TractionLossDensity, &lm.TireStress, &lm.Samples); err != nil {
			return nil, err
		}
		out = append(out, lm)
	}
	return out, rows.Err()
}

// GetStrategyResults returns a run's ranked strategies
func (db *Database) GetStrategyResults(runID string) ([]models.StrategyResult, error) {
	rows, err := db.conn.Query(`
		SELECT strategy, stints, total_time_s, stops, laps_covered, coverage_mismatch
		FROM strategy_results WHERE run_id = ? ORDER BY rank
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StrategyResult
	for rows.Next() {
		var r models.StrategyResult
		if err := rows.Scan(&r.Strategy, &r.Stints, &r.TotalTimeS, &r.Stops, &r.LapsCovered, &r.CoverageMismatch); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *Database) getWarnings(runID string) ([]models.Warning, error) {
	rows, err := db.conn.Query(`SELECT kind, strategy, message FROM run_warnings WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Warning
	for rows.Next() {
		var w models.Warning
		var kind string
		var strategy sql.NullString
		if err := rows.Scan(&kind, &strategy, &w.Message); err != nil {
			return nil, err
		}
		w.Kind = models.WarningKind(kind)
		if strategy.Valid {
			w.Strategy = strategy.String
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything stored with it
func (db *Database) DeleteRun(id string) error {
	res, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetStats returns database statistics
func (db *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRuns, totalLaps, totalResults, totalWarnings int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalRuns); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM lap_metrics").Scan(&totalLaps); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM strategy_results").Scan(&totalResults); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM run_warnings").Scan(&totalWarnings); err != nil {
		return nil, err
	}

	stats["total_runs"] = totalRuns
	stats["total_lap_metrics"] = totalLaps
	stats["total_strategy_results"] = totalResults
	stats["total_warnings"] = totalWarnings

	return stats, nil
}
