package logging

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	_ "github.com/mattn/go-sqlite3"
)

// Artifact file names inside a session directory. Deterministic so
// other tooling (and the diag command) can find them without metadata.
const (
	JSONLFile   = "logs.jsonl"
	SQLiteFile  = "logs.sqlite"
	TextLogFile = "launcher.log"
)

// sink is a storage backend a Record is appended to. Sinks open their
// backing files lazily on first write and must make each append a
// complete, flushed unit so an interrupt never leaves a torn record.
type sink interface {
	Name() string
	Append(rec Record) error
	Close() error
}

// ---------------------------------------------------------------------------
// JSON Lines sink
// ---------------------------------------------------------------------------

type jsonlSink struct {
	path string
	file *os.File
}

func newJSONLSink(dir string) *jsonlSink {
	return &jsonlSink{path: filepath.Join(dir, JSONLFile)}
}

func (s *jsonlSink) Name() string { return "jsonl" }

func (s *jsonlSink) Append(rec Record) error {
	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		s.file = f
	}
	line, err := rec.MarshalJSONL()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	// O_APPEND writes are atomic for line-sized payloads; Sync makes the
	// record durable before the next one begins.
	return s.file.Sync()
}

func (s *jsonlSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ---------------------------------------------------------------------------
// SQLite sink
// ---------------------------------------------------------------------------

const logsSchema = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	level TEXT NOT NULL,
	source TEXT NOT NULL,
	content TEXT NOT NULL,
	run_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs(ts);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_source ON logs(source);
`

type sqliteSink struct {
	path string
	db   *sql.DB
}

func newSQLiteSink(dir string) *sqliteSink {
	return &sqliteSink{path: filepath.Join(dir, SQLiteFile)}
}

func (s *sqliteSink) Name() string { return "sqlite" }

func (s *sqliteSink) open() error {
	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// NORMAL is safe under WAL and much faster than the FULL default.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec(logsSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create logs table: %w", err)
	}
	s.db = db
	return nil
}

func (s *sqliteSink) Append(rec Record) error {
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(
		"INSERT INTO logs (ts, level, source, content, run_id) VALUES (?, ?, ?, ?, ?)",
		rec.Time.Format(time.RFC3339), string(rec.Level), rec.Source, rec.Content, rec.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *sqliteSink) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ---------------------------------------------------------------------------
// Terminal sink
// ---------------------------------------------------------------------------

var levelStyles = map[Level]lipgloss.Style{
	LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color("5")), // magenta
	LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("6")), // cyan
	LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("3")), // yellow
	LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
}

// terminalSink mirrors records to the terminal with level colouring and
// keeps a plain-text copy in launcher.log inside the session.
type terminalSink struct {
	out    io.Writer
	colors bool
	path   string
	file   *os.File
}

func newTerminalSink(dir string, out io.Writer, colors bool) *terminalSink {
	return &terminalSink{out: out, colors: colors, path: filepath.Join(dir, TextLogFile)}
}

func (s *terminalSink) Name() string { return "terminal" }

func (s *terminalSink) Append(rec Record) error {
	line := fmt.Sprintf("[%s][%s][%s] %s",
		rec.Time.Format(time.RFC3339), rec.Level, rec.Source, rec.Content)

	display := line
	if s.colors {
		if style, ok := levelStyles[rec.Level]; ok {
			display = style.Render(line)
		}
	}
	fmt.Fprintln(s.out, display)

	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", s.path, err)
		}
		s.file = f
	}
	if _, err := fmt.Fprintln(s.file, line); err != nil {
		return fmt.Errorf("failed to append to text log: %w", err)
	}
	return nil
}

func (s *terminalSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
