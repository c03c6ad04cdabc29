package logging

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// ReadJSONL reads all records back from a session's JSON Lines sink in
// append order. Used by the sessions commands and tests; a missing file
// means no records were written.
func ReadJSONL(sessionDir string) ([]Record, error) {
	f, err := os.Open(filepath.Join(sessionDir, JSONLFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open jsonl log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, err := UnmarshalJSONL(line)
		if err != nil {
			return nil, fmt.Errorf("corrupt jsonl record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jsonl log: %w", err)
	}
	return records, nil
}

// CountRecords returns the number of rows in a session's SQLite sink.
func CountRecords(sessionDir string) (int64, error) {
	db, err := openReadOnly(sessionDir)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var count int64
	if err := db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// TailRecords returns the last n records from a session's SQLite sink
// in append order.
func TailRecords(sessionDir string, n int) ([]Record, error) {
	db, err := openReadOnly(sessionDir)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(
		"SELECT level, source, content, run_id FROM logs ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var level string
		if err := rows.Scan(&level, &rec.Source, &rec.Content, &rec.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Level = Level(level)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse back into append order.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func openReadOnly(sessionDir string) (*sql.DB, error) {
	path := filepath.Join(sessionDir, SQLiteFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no sqlite log in session: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite log: %w", err)
	}
	return db, nil
}
