package diag

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"chromedoctor/internal/logging"
	"chromedoctor/internal/session"
)

func newTestLogger(t *testing.T) (*logging.Logger, *session.Session) {
	t.Helper()
	sess, err := session.Create(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	log, err := logging.Open(sess, logging.Options{JSONL: true})
	if err != nil {
		t.Fatalf("failed to open logger: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log, sess
}

func TestCollectToleratesMissingTools(t *testing.T) {
	log, sess := newTestLogger(t)

	c := &Collector{probes: []Probe{
		{Source: "dmesg", Binary: "definitely-not-installed-anywhere"},
		{Source: "probe", Binary: "echo", Args: []string{"hello diagnostics"}},
	}}
	if err := c.Collect(context.Background(), log); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	log.Close()

	records, err := logging.ReadJSONL(sess.Path)
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}

	var sawUnavailable, sawOutput bool
	for _, rec := range records {
		if rec.Level == logging.LevelWarning && strings.Contains(rec.Content, "not available on this system") {
			sawUnavailable = true
		}
		if rec.Level == logging.LevelInfo && rec.Source == "probe" && rec.Content == "hello diagnostics" {
			sawOutput = true
		}
	}
	if !sawUnavailable {
		t.Error("missing tool did not produce an unavailable warning")
	}
	if !sawOutput {
		t.Error("working probe output was not recorded")
	}
}

func TestCollectToleratesFailingTool(t *testing.T) {
	log, sess := newTestLogger(t)

	c := &Collector{probes: []Probe{
		{Source: "broken", Binary: "false"},
		{Source: "probe", Binary: "echo", Args: []string{"still here"}},
	}}
	if err := c.Collect(context.Background(), log); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	log.Close()

	records, err := logging.ReadJSONL(sess.Path)
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}

	var sawFailure, sawOutput bool
	for _, rec := range records {
		if rec.Source == "broken" && rec.Level == logging.LevelWarning && strings.Contains(rec.Content, "collection failed") {
			sawFailure = true
		}
		if rec.Source == "probe" && rec.Content == "still here" {
			sawOutput = true
		}
	}
	if !sawFailure {
		t.Error("failing tool did not produce a warning")
	}
	if !sawOutput {
		t.Error("collection stopped after a failing probe")
	}
}

func TestCollectCancelled(t *testing.T) {
	log, _ := newTestLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollector(100)
	if err := c.Collect(ctx, log); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect with cancelled context = %v, want context.Canceled", err)
	}
}

func TestProbesUseJournalLines(t *testing.T) {
	probes := Probes(500)
	var found int
	for _, p := range probes {
		if p.Binary != "journalctl" {
			continue
		}
		found++
		var hasBound bool
		for i, arg := range p.Args {
			if arg == "-n" && i+1 < len(p.Args) && p.Args[i+1] == "500" {
				hasBound = true
			}
		}
		if !hasBound {
			t.Errorf("journalctl probe %q missing -n 500: %v", p.Source, p.Args)
		}
	}
	if found != 2 {
		t.Errorf("expected 2 journalctl probes (system and user), got %d", found)
	}
}

func TestRunProbeTimeout(t *testing.T) {
	_, err := runProbe(context.Background(), "sleep", []string{"5"}, 50*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("runProbe = %v, want timeout error", err)
	}
}

func TestRunProbeExitCode(t *testing.T) {
	result, err := runProbe(context.Background(), "false", nil, time.Second)
	if err == nil {
		t.Fatal("runProbe on failing binary should error")
	}
	if result.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", result.ExitCode)
	}
}

func TestRunProbeMissingBinary(t *testing.T) {
	_, err := runProbe(context.Background(), "definitely-not-installed-anywhere", nil, time.Second)
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("runProbe = %v, want ErrToolUnavailable", err)
	}
}

func TestLimitedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 10}

	n, err := lw.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 16 {
		t.Errorf("Write reported %d bytes, want 16 (no short write)", n)
	}
	if buf.String() != "0123456789" {
		t.Errorf("captured %q, want first 10 bytes", buf.String())
	}
	if !lw.truncated {
		t.Error("truncated flag not set")
	}
}

func TestSplitLines(t *testing.T) {
	lines := splitLines("first\r\n\n  \nsecond   \n")
	want := []string{"first", "second"}
	if len(lines) != len(want) {
		t.Fatalf("splitLines returned %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestAnalyzeCrashPatterns(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "empty input",
			lines: nil,
			want:  nil,
		},
		{
			name:  "clean log",
			lines: []string{"usb 1-1: new high-speed USB device"},
			want:  nil,
		},
		{
			name:  "gpu hang",
			lines: []string{"i915 0000:00:02.0: GPU HANG: ecode 12:1:0"},
			want:  []string{"possible GPU hang detected in kernel log"},
		},
		{
			name:  "oom kill",
			lines: []string{"oom-killer invoked for chrome: gfp_mask=0x100cca"},
			want:  []string{"possible OOM kill detected in kernel log"},
		},
		{
			name: "multiple classes",
			lines: []string{
				"audit: seccomp violation by chrome pid 1234",
				"chrome[1234]: segfault at 0 ip 00007f",
			},
			want: []string{
				"possible seccomp violation detected in kernel log",
				"possible segfault detected in kernel log",
			},
		},
		{
			name:  "one finding per class",
			lines: []string{"amdgpu: ring gfx hang", "i915: GPU hang"},
			want:  []string{"possible GPU hang detected in kernel log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeCrashPatterns(tt.lines)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d findings, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("findings[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
