// Package logging is the session logger: it appends timestamped,
// leveled, sourced records to every configured sink of a session
// directory. Three fixed sink variants exist: a JSON Lines file, an
// indexed SQLite table, and a terminal mirror backed by a plain text
// log. A failing sink is skipped with a one-time warning and never
// aborts the run; partial forensics beat no forensics.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"chromedoctor/internal/session"
)

// Options selects which sinks a Logger writes to. The zero value
// disables everything; DefaultOptions enables the full set.
type Options struct {
	JSONL    bool
	SQLite   bool
	Terminal bool
	Colors   bool

	// Out is the terminal mirror destination; defaults to os.Stdout.
	Out io.Writer
}

// DefaultOptions enables all sinks with colour output.
func DefaultOptions() Options {
	return Options{JSONL: true, SQLite: true, Terminal: true, Colors: true}
}

type sinkState struct {
	sink   sink
	failed bool
}

// Logger appends records to all configured sinks of one session.
// Single-process, single-writer: the CLI never has two writers open on
// the same session.
type Logger struct {
	sess  *session.Session
	runID string
	sinks []*sinkState
	warn  io.Writer
	count int
}

// Open binds a Logger to a session directory. Sink files are created
// lazily on first write, so opening a logger never dirties a session.
func Open(sess *session.Session, opts Options) (*Logger, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	l := &Logger{
		sess:  sess,
		runID: uuid.NewString(),
		warn:  os.Stderr,
	}
	if opts.JSONL {
		l.sinks = append(l.sinks, &sinkState{sink: newJSONLSink(sess.Path)})
	}
	if opts.SQLite {
		l.sinks = append(l.sinks, &sinkState{sink: newSQLiteSink(sess.Path)})
	}
	if opts.Terminal {
		l.sinks = append(l.sinks, &sinkState{sink: newTerminalSink(sess.Path, out, opts.Colors)})
	}
	return l, nil
}

// RunID returns the correlation ID stamped on every record this logger
// writes.
func (l *Logger) RunID() string { return l.runID }

// Session returns the session this logger is bound to.
func (l *Logger) Session() *session.Session { return l.sess }

// Count returns the number of records written so far.
func (l *Logger) Count() int { return l.count }

// Log appends one record to all healthy sinks. A sink that errors is
// warned about once and skipped for the rest of the run; Log itself
// never fails.
func (l *Logger) Log(level Level, source, content string) {
	rec := Record{
		Time:    time.Now(),
		Level:   level,
		Source:  source,
		Content: content,
		RunID:   l.runID,
	}
	l.count++
	for _, st := range l.sinks {
		if st.failed {
			continue
		}
		if err := st.sink.Append(rec); err != nil {
			st.failed = true
			fmt.Fprintf(l.warn, "warning: %s sink disabled: %v\n", st.sink.Name(), err)
		}
	}
}

// Debug logs a DEBUG record.
func (l *Logger) Debug(source, content string) { l.Log(LevelDebug, source, content) }

// Info logs an INFO record.
func (l *Logger) Info(source, content string) { l.Log(LevelInfo, source, content) }

// Warning logs a WARNING record.
func (l *Logger) Warning(source, content string) { l.Log(LevelWarning, source, content) }

// Error logs an ERROR record.
func (l *Logger) Error(source, content string) { l.Log(LevelError, source, content) }

// Close releases all sink resources. Close errors are reported but a
// partially closed logger is still safe to discard.
func (l *Logger) Close() error {
	var firstErr error
	for _, st := range l.sinks {
		if err := st.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
