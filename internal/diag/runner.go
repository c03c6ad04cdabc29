package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ErrToolUnavailable marks a probe whose binary is not installed. It is
// recorded in the session log, never returned from Collect.
var ErrToolUnavailable = errors.New("diagnostic tool unavailable")

// runResult is the outcome of one external probe invocation.
type runResult struct {
	Output    string
	ExitCode  int
	Truncated bool
	Duration  time.Duration
}

// defaultMaxOutput bounds captured probe output. Diagnostic queries are
// already scoped (last minute, last N lines) so anything past this is a
// runaway tool, not signal.
const defaultMaxOutput int64 = 1 << 20 // 1 MiB

// runProbe executes one external command with a per-probe timeout and a
// hard cap on captured output. stderr is merged into stdout so tool
// complaints end up in the session log next to the data.
func runProbe(ctx context.Context, binary string, args []string, timeout time.Duration) (*runResult, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, binary)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var buf bytes.Buffer
	limited := &limitedWriter{w: &buf, max: defaultMaxOutput}

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Stdout = limited
	cmd.Stderr = limited

	start := time.Now()
	err := cmd.Run()
	result := &runResult{
		Output:    buf.String(),
		Truncated: limited.truncated,
		Duration:  time.Since(start),
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%s timed out after %s", binary, timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("%s exited with code %d", binary, result.ExitCode)
		}
		return result, fmt.Errorf("%s failed to run: %w", binary, err)
	}
	return result, nil
}

// limitedWriter caps total bytes written, discarding the overflow while
// reporting full writes so the child never sees a short-write error.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
