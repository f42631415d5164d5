package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open creates or opens a SQLite database
func Open(path string) (*DB, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	// Run migrations
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate creates or updates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS solves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		clock_hz INTEGER NOT NULL,
		bitrate INTEGER NOT NULL,
		midpoint REAL NOT NULL,
		tolerance_pct REAL NOT NULL,
		encoder TEXT NOT NULL,
		success BOOLEAN DEFAULT 0,
		error TEXT,
		error_code TEXT,
		bs1 INTEGER DEFAULT 0,
		bs2 INTEGER DEFAULT 0,
		sjw INTEGER DEFAULT 0,
		prescaler INTEGER DEFAULT 0,
		total_quanta INTEGER DEFAULT 0,
		error_pct REAL DEFAULT 0,
		register INTEGER DEFAULT 0,
		params TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_solves_name ON solves(name);
	CREATE INDEX IF NOT EXISTS idx_solves_encoder ON solves(encoder);
	CREATE INDEX IF NOT EXISTS idx_solves_success ON solves(success);
	CREATE INDEX IF NOT EXISTS idx_solves_created_at ON solves(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

const solveColumns = `id, name, clock_hz, bitrate, midpoint, tolerance_pct, encoder,
	success, error, error_code, bs1, bs2, sjw, prescaler, total_quanta,
	error_pct, register, params, created_at`

// CreateSolve stores a solve record and fills in its ID
func (db *DB) CreateSolve(s *Solve) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	result, err := db.conn.Exec(
		`INSERT INTO solves (name, clock_hz, bitrate, midpoint, tolerance_pct, encoder,
		 success, error, error_code, bs1, bs2, sjw, prescaler, total_quanta,
		 error_pct, register, params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.ClockHz, s.Bitrate, s.Midpoint, s.TolerancePct, s.Encoder,
		s.Success, s.Error, s.ErrorCode, s.BS1, s.BS2, s.SJW, s.Prescaler, s.TotalQuanta,
		s.ErrorPct, s.Register, s.Params, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create solve: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	s.ID = id
	return nil
}

// GetSolve retrieves a solve by ID
func (db *DB) GetSolve(id int64) (*Solve, error) {
	row := db.conn.QueryRow(`SELECT `+solveColumns+` FROM solves WHERE id = ?`, id)
	s, err := scanSolve(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("solve %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solve: %w", err)
	}
	return s, nil
}

// ListSolves retrieves solves based on filters, newest first
func (db *DB) ListSolves(filter SolveFilter) ([]*Solve, error) {
	query := `SELECT ` + solveColumns + ` FROM solves WHERE 1=1`
	args := []interface{}{}

	if filter.Name != "" {
		query += " AND name = ?"
		args = append(args, filter.Name)
	}

	if filter.Encoder != "" {
		query += " AND encoder = ?"
		args = append(args, filter.Encoder)
	}

	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.Since)
	}

	if filter.Success != nil {
		query += " AND success = ?"
		args = append(args, filter.Success)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list solves: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var solves []*Solve
	for rows.Next() {
		s, err := scanSolve(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan solve: %w", err)
		}
		solves = append(solves, s)
	}

	return solves, rows.Err()
}

// DeleteSolve removes a solve record
func (db *DB) DeleteSolve(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM solves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete solve: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("solve %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSolvesBefore removes every solve recorded before t and returns how
// many were removed
func (db *DB) DeleteSolvesBefore(t time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM solves WHERE created_at < ?`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to prune solves: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned solves: %w", err)
	}
	return n, nil
}

// CreateSolves stores several records in one transaction
func (db *DB) CreateSolves(solves []*Solve) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Only rollback if we haven't committed
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO solves (name, clock_hz, bitrate, midpoint, tolerance_pct, encoder,
		 success, error, error_code, bs1, bs2, sjw, prescaler, total_quanta,
		 error_pct, register, params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range solves {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = time.Now()
		}
		result, err := stmt.Exec(
			s.Name, s.ClockHz, s.Bitrate, s.Midpoint, s.TolerancePct, s.Encoder,
			s.Success, s.Error, s.ErrorCode, s.BS1, s.BS2, s.SJW, s.Prescaler, s.TotalQuanta,
			s.ErrorPct, s.Register, s.Params, s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert solve %s: %w", s.Name, err)
		}
		if s.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSolve(row scanner) (*Solve, error) {
	s := &Solve{}
	var errText, errCode sql.NullString
	err := row.Scan(
		&s.ID, &s.Name, &s.ClockHz, &s.Bitrate, &s.Midpoint, &s.TolerancePct, &s.Encoder,
		&s.Success, &errText, &errCode, &s.BS1, &s.BS2, &s.SJW, &s.Prescaler, &s.TotalQuanta,
		&s.ErrorPct, &s.Register, &s.Params, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Error = errText.String
	s.ErrorCode = errCode.String
	return s, nil
}
