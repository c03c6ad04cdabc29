// Package session manages the per-run forensic directories that every
// launch writes its artifacts into. A session is a plain directory named
// session_YYYY-MM-DD_HH-MM-SS under the cache base directory; the name
// format embeds a sortable timestamp so lexicographic order equals
// chronological order and "latest" is simply the maximum name.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// NameFormat is the time layout for session directory names.
// Seconds are included so rapid consecutive launches stay unique.
const NameFormat = "session_2006-01-02_15-04-05"

const namePrefix = "session_"

// ErrNoSessions is returned by Latest when the base directory holds no
// session directories yet.
var ErrNoSessions = errors.New("no sessions found")

// Session is one timestamped run directory.
type Session struct {
	Name      string
	Path      string
	StartedAt time.Time
}

// Create makes a new session directory under baseDir and returns it.
// The base directory is created as needed.
func Create(baseDir string) (*Session, error) {
	now := time.Now()
	name := now.Format(NameFormat)
	path := filepath.Join(baseDir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Session{Name: name, Path: path, StartedAt: now}, nil
}

// Open returns a Session for an existing directory, parsing the start
// time out of the name.
func Open(path string) (*Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("session path is not a directory: %s", path)
	}
	name := filepath.Base(path)
	started, err := time.ParseInLocation(NameFormat, name, time.Local)
	if err != nil {
		// Not fatal: an oddly named directory still works as a session.
		started = info.ModTime()
	}
	return &Session{Name: name, Path: path, StartedAt: started}, nil
}

// List returns all sessions under baseDir in ascending name order
// (oldest first). A missing base directory yields an empty list.
func List(baseDir string) ([]*Session, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session base directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), namePrefix) {
			continue
		}
		sess, err := Open(filepath.Join(baseDir, entry.Name()))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Name < sessions[j].Name })
	return sessions, nil
}

// Latest returns the most recent session: the lexicographic maximum of
// the session names, which the name format guarantees is also the
// chronological maximum.
func Latest(baseDir string) (*Session, error) {
	sessions, err := List(baseDir)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	return sessions[len(sessions)-1], nil
}

// Prune removes sessions older than maxAge, always retaining the newest
// keep sessions regardless of age. Returns the number removed.
func Prune(baseDir string, maxAge time.Duration, keep int) (int, error) {
	sessions, err := List(baseDir)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(sessions) <= keep {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, sess := range sessions[:len(sessions)-keep] {
		if sess.StartedAt.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(sess.Path); err != nil {
			return removed, fmt.Errorf("failed to remove session %s: %w", sess.Name, err)
		}
		removed++
	}
	return removed, nil
}
