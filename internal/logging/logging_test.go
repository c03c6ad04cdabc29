package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"chromedoctor/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.Create(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

func TestJSONLAppendOrder(t *testing.T) {
	sess := newTestSession(t)
	log, err := Open(sess, Options{JSONL: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	log.Info("launcher", "starting chrome")
	log.Warning("dmesg", "gpu hang detected")
	log.Error("crashpad", "new crash dump")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	records, err := ReadJSONL(sess.Path)
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}

	want := []Record{
		{Level: LevelInfo, Source: "launcher", Content: "starting chrome", RunID: log.RunID()},
		{Level: LevelWarning, Source: "dmesg", Content: "gpu hang detected", RunID: log.RunID()},
		{Level: LevelError, Source: "crashpad", Content: "new crash dump", RunID: log.RunID()},
	}
	if diff := cmp.Diff(want, records, cmpopts.IgnoreFields(Record{}, "Time")); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	for i, rec := range records {
		if rec.Time.IsZero() {
			t.Errorf("records[%d] has zero timestamp", i)
		}
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	sess := newTestSession(t)
	log, err := Open(sess, Options{SQLite: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		log.Info("dmesg", fmt.Sprintf("kernel line %d", i))
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	count, err := CountRecords(sess.Path)
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if count != 5 {
		t.Errorf("CountRecords = %d, want 5", count)
	}

	tail, err := TailRecords(sess.Path, 2)
	if err != nil {
		t.Fatalf("TailRecords failed: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("TailRecords returned %d, want 2", len(tail))
	}
	if tail[0].Content != "kernel line 3" || tail[1].Content != "kernel line 4" {
		t.Errorf("tail out of order: %q, %q", tail[0].Content, tail[1].Content)
	}
}

func TestSinksAgree(t *testing.T) {
	sess := newTestSession(t)
	var out bytes.Buffer
	log, err := Open(sess, Options{JSONL: true, SQLite: true, Terminal: true, Out: &out})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	log.Debug("sysinfo", "kernel=6.18.5")
	log.Info("launcher", "chrome alive")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	jsonlRecords, err := ReadJSONL(sess.Path)
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	sqliteCount, err := CountRecords(sess.Path)
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if len(jsonlRecords) != 2 || sqliteCount != 2 {
		t.Errorf("sinks disagree: jsonl=%d sqlite=%d, want 2 each", len(jsonlRecords), sqliteCount)
	}
	if log.Count() != 2 {
		t.Errorf("Count = %d, want 2", log.Count())
	}

	if !strings.Contains(out.String(), "chrome alive") {
		t.Errorf("terminal mirror missing record, got: %q", out.String())
	}
	plain, err := os.ReadFile(filepath.Join(sess.Path, TextLogFile))
	if err != nil {
		t.Fatalf("failed to read text log: %v", err)
	}
	if !strings.Contains(string(plain), "[INFO][launcher] chrome alive") {
		t.Errorf("text log missing record, got: %q", string(plain))
	}
}

func TestFailedSinkIsIsolated(t *testing.T) {
	sess := newTestSession(t)

	// Pre-create logs.jsonl as a directory so the jsonl sink fails on
	// first append.
	if err := os.Mkdir(filepath.Join(sess.Path, JSONLFile), 0o755); err != nil {
		t.Fatalf("failed to block jsonl path: %v", err)
	}

	var warnings bytes.Buffer
	log, err := Open(sess, Options{JSONL: true, SQLite: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	log.warn = &warnings

	log.Info("launcher", "first")
	log.Info("launcher", "second")
	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// The sqlite sink must carry on despite the jsonl failure.
	count, err := CountRecords(sess.Path)
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if count != 2 {
		t.Errorf("CountRecords = %d, want 2", count)
	}

	// Exactly one warning for the broken sink, not one per record.
	if got := strings.Count(warnings.String(), "jsonl sink disabled"); got != 1 {
		t.Errorf("warning emitted %d times, want 1: %q", got, warnings.String())
	}
}

func TestLazySinkFilesNotCreatedOnOpen(t *testing.T) {
	sess := newTestSession(t)
	log, err := Open(sess, DefaultOptions())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer log.Close()

	for _, name := range []string{JSONLFile, SQLiteFile} {
		if _, err := os.Stat(filepath.Join(sess.Path, name)); !os.IsNotExist(err) {
			t.Errorf("%s created before first write", name)
		}
	}
}

func TestReadJSONLMissingFile(t *testing.T) {
	records, err := ReadJSONL(t.TempDir())
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if records != nil {
		t.Errorf("expected nil records for missing file, got %d", len(records))
	}
}

func TestRecordJSONLRoundTrip(t *testing.T) {
	rec := Record{
		Level:   LevelWarning,
		Source:  "analysis",
		Content: `possible "GPU hang" detected`,
		RunID:   "run-1",
	}
	line, err := rec.MarshalJSONL()
	if err != nil {
		t.Fatalf("MarshalJSONL failed: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Error("marshalled line missing trailing newline")
	}

	got, err := UnmarshalJSONL(bytes.TrimRight(line, "\n"))
	if err != nil {
		t.Fatalf("UnmarshalJSONL failed: %v", err)
	}
	if diff := cmp.Diff(rec, got, cmpopts.IgnoreFields(Record{}, "Time")); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
