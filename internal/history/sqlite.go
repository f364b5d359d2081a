package history

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/lurchfeed/internal/log"
)

//go:embed schema.sql
var schema string

// DB owns the SQLite connection for the history store.
type DB struct {
	db *sql.DB
}

// NewDB opens (creating if needed) the history database at path and applies
// the schema. The parent directory is created with 0700 permissions.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}

	log.Debug(log.CatHistory, "history database opened", "path", path)
	return &DB{db: db}, nil
}

// Runs returns a Repository backed by this database.
func (d *DB) Runs() Repository {
	return &sqliteRepository{db: d.db}
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

const runColumns = `id, guid, url, start_offset, stop_offset, output, title, state,
	exit_code, chunks, bytes, malformed, error, created_at, finished_at`

// sqliteRepository implements Repository using SQLite.
type sqliteRepository struct {
	db *sql.DB
}

var _ Repository = (*sqliteRepository)(nil)

// runModel is the database row for the runs table. Times are Unix milliseconds.
type runModel struct {
	ID         int64
	GUID       string
	URL        string
	Start      string
	Stop       string
	Output     string
	Title      string
	State      string
	ExitCode   int
	Chunks     int
	Bytes      int64
	Malformed  int
	Error      string
	CreatedAt  int64
	FinishedAt *int64 // nullable
}

func toRunModel(r *Run) *runModel {
	m := &runModel{
		ID:        r.ID,
		GUID:      r.GUID,
		URL:       r.URL,
		Start:     r.Start,
		Stop:      r.Stop,
		Output:    r.Output,
		Title:     r.Title,
		State:     string(r.State),
		ExitCode:  r.ExitCode,
		Chunks:    r.Chunks,
		Bytes:     r.Bytes,
		Malformed: r.Malformed,
		Error:     r.Error,
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
	if r.FinishedAt != nil {
		ms := r.FinishedAt.UnixMilli()
		m.FinishedAt = &ms
	}
	return m
}

func (m *runModel) toRun() *Run {
	r := &Run{
		ID:        m.ID,
		GUID:      m.GUID,
		URL:       m.URL,
		Start:     m.Start,
		Stop:      m.Stop,
		Output:    m.Output,
		Title:     m.Title,
		State:     State(m.State),
		ExitCode:  m.ExitCode,
		Chunks:    m.Chunks,
		Bytes:     m.Bytes,
		Malformed: m.Malformed,
		Error:     m.Error,
		CreatedAt: time.UnixMilli(m.CreatedAt),
	}
	if m.FinishedAt != nil {
		t := time.UnixMilli(*m.FinishedAt)
		r.FinishedAt = &t
	}
	return r
}

// scanRun scans a row into a runModel.
func scanRun(scanner interface{ Scan(...any) error }) (*runModel, error) {
	var m runModel
	err := scanner.Scan(
		&m.ID, &m.GUID, &m.URL, &m.Start, &m.Stop, &m.Output, &m.Title, &m.State,
		&m.ExitCode, &m.Chunks, &m.Bytes, &m.Malformed, &m.Error, &m.CreatedAt, &m.FinishedAt,
	)
	return &m, err
}

func (r *sqliteRepository) Save(run *Run) error {
	m := toRunModel(run)

	if run.ID == 0 {
		result, err := r.db.Exec(
			`INSERT INTO runs (
				guid, url, start_offset, stop_offset, output, title, state,
				exit_code, chunks, bytes, malformed, error, created_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.GUID, m.URL, m.Start, m.Stop, m.Output, m.Title, m.State,
			m.ExitCode, m.Chunks, m.Bytes, m.Malformed, m.Error, m.CreatedAt, m.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		run.ID = id
		return nil
	}

	result, err := r.db.Exec(
		`UPDATE runs SET
			title = ?, state = ?, exit_code = ?, chunks = ?, bytes = ?,
			malformed = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		m.Title, m.State, m.ExitCode, m.Chunks, m.Bytes,
		m.Malformed, m.Error, m.FinishedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &NotFoundError{GUID: run.GUID}
	}
	return nil
}

func (r *sqliteRepository) FindByGUID(guid string) (*Run, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE guid = ?`, guid)
	m, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{GUID: guid}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run by guid: %w", err)
	}
	return m.toRun(), nil
}

func (r *sqliteRepository) List(filter ListFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any

	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		m, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, m.toRun())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// Close is a no-op; the connection is owned by DB.
func (r *sqliteRepository) Close() error {
	return nil
}
