package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/dnsblcheck/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "dnsblcheck.db"

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a requested check does not exist.
var ErrNotFound = errors.New("check not found in history")

// Store is the SQLite-backed check history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the check command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// ReadOnlyOptions returns options that never create a database.
func ReadOnlyOptions() Options {
	return Options{}
}

// Open opens the history database in dbDir.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s: %w", dbPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		service TEXT NOT NULL,
		checked_at TEXT NOT NULL,
		clean INTEGER NOT NULL,
		evaluated INTEGER NOT NULL,
		providers INTEGER NOT NULL,
		listed INTEGER NOT NULL,
		unknown INTEGER NOT NULL,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checks_host ON checks(host);
	CREATE INDEX IF NOT EXISTS idx_checks_checked_at ON checks(checked_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Entry summarizes one stored check.
type Entry struct {
	ID        int64     `json:"id"`
	Host      string    `json:"host"`
	Service   string    `json:"service"`
	CheckedAt time.Time `json:"checked_at"`
	Clean     bool      `json:"clean"`
	Evaluated bool      `json:"evaluated"`
	Providers int       `json:"providers"`
	Listed    int       `json:"listed"`
	Unknown   int       `json:"unknown"`
	Error     string    `json:"error,omitempty"`
}

// Passed reports whether the stored check completed with a clean verdict.
func (e Entry) Passed() bool {
	return e.Evaluated && e.Error == "" && e.Clean
}

// Save stores report and returns its ID.
func (s *Store) Save(ctx context.Context, report *model.CheckReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	counts := report.Counts()

	res, err := s.db.ExecContext(ctx, `
	INSERT INTO checks (host, service, checked_at, clean, evaluated, providers, listed, unknown, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Host,
		report.Service,
		report.DateChecked.UTC().Format(timeLayout),
		report.Clean,
		report.Evaluated,
		counts.Total(),
		counts.Listed,
		counts.Unknown,
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save check: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get check id: %w", err)
	}
	return id, nil
}

// List returns stored checks, newest first. An empty host lists every
// host; a non-positive limit returns all entries.
func (s *Store) List(ctx context.Context, host string, limit int) ([]Entry, error) {
	query := `
	SELECT id, host, service, checked_at, clean, evaluated, providers, listed, unknown, error
	FROM checks`
	args := make([]any, 0, 2)
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY checked_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checks: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e         Entry
			checkedAt string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Host, &e.Service, &checkedAt, &e.Clean, &e.Evaluated,
			&e.Providers, &e.Listed, &e.Unknown, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan check: %w", err)
		}
		e.CheckedAt = parseTimestamp(checkedAt)
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Hosts returns every host with at least one stored check, sorted.
func (s *Store) Hosts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT host FROM checks ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	hosts := make([]string, 0)
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// Get returns the full report stored under id.
func (s *Store) Get(ctx context.Context, id int64) (*model.CheckReport, error) {
	return s.loadReport(ctx, `SELECT report_json FROM checks WHERE id = ?`, id)
}

// Latest returns the most recent report for host.
func (s *Store) Latest(ctx context.Context, host string) (*model.CheckReport, error) {
	return s.loadReport(ctx, `
	SELECT report_json FROM checks
	WHERE host = ?
	ORDER BY checked_at DESC, id DESC
	LIMIT 1
	`, host)
}

func (s *Store) loadReport(ctx context.Context, query string, arg any) (*model.CheckReport, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load check: %w", err)
	}

	var report model.CheckReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats are tried in order when reading checked_at.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
