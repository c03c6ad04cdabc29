// Package launcher starts Chrome with safety flags under a
// single-instance lock and classifies the outcome with a timeout
// heuristic: a browser that is still alive when the stability timeout
// elapses is considered a successful launch, anything that exits sooner
// is evidence. All activity is recorded through the session logger for
// later inspection by the diag command.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"chromedoctor/internal/config"
	"chromedoctor/internal/logging"
	"chromedoctor/internal/session"
)

// SafeFlags is the curated flag set every launch starts with:
// Chrome's own logging is routed to stderr so the session captures it.
var SafeFlags = []string{"--enable-logging=stderr", "--v=1"}

// Outcome classifies one launch attempt.
type Outcome string

const (
	// OutcomeStable: the browser was still running when the timeout
	// elapsed; it is left running independently.
	OutcomeStable Outcome = "stable"

	// OutcomeExitedEarly: the browser exited cleanly before the
	// timeout. Chrome normally never does this, so it is still
	// reported as a warning.
	OutcomeExitedEarly Outcome = "exited-early"

	// OutcomeFailedToStart: the browser exited nonzero or could not be
	// started at all.
	OutcomeFailedToStart Outcome = "failed-to-start"
)

// pollInterval is how often the wait loop re-checks the child process.
const pollInterval = 200 * time.Millisecond

// chromeOutputFile captures the browser's merged stdout/stderr inside
// the session directory.
const chromeOutputFile = "chrome_stdout.log"

// maxChromeOutput bounds the captured browser output.
const maxChromeOutput int64 = 4 << 20 // 4 MiB

// Launcher starts and supervises one launch attempt.
type Launcher struct {
	cfg *config.Config
	zl  *zap.Logger
}

// New builds a Launcher. zl is the tool's own operational logger; the
// forensic trail goes through the session logger passed to Launch.
func New(cfg *config.Config, zl *zap.Logger) *Launcher {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Launcher{cfg: cfg, zl: zl}
}

// Launch starts Chrome and blocks up to timeout waiting for it to
// prove stable. It returns the outcome classification; a non-nil error
// accompanies every OutcomeFailedToStart.
func (l *Launcher) Launch(ctx context.Context, sess *session.Session, log *logging.Logger, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		return OutcomeFailedToStart, fmt.Errorf("%w: got %s", ErrInvalidTimeout, timeout)
	}

	// Single-instance discipline: concurrent invocations would race on
	// the session directory and double-launch the browser.
	lock := flock.New(l.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return OutcomeFailedToStart, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return OutcomeFailedToStart, ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.zl.Warn("failed to release lock", zap.Error(err))
		}
	}()

	chromePath, err := FindChrome(l.cfg)
	if err != nil {
		log.Error("launcher", err.Error())
		return OutcomeFailedToStart, err
	}

	args := append(append([]string(nil), SafeFlags...), l.cfg.ExtraFlags...)
	log.Info("launcher", chromePath+" "+strings.Join(args, " "))

	outFile, err := os.Create(filepath.Join(sess.Path, chromeOutputFile))
	if err != nil {
		return OutcomeFailedToStart, fmt.Errorf("failed to create chrome output file: %w", err)
	}
	defer outFile.Close()
	output := &limitedWriter{w: outFile, max: maxChromeOutput}

	cmd := exec.Command(chromePath, args...)
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		log.Error("launcher", fmt.Sprintf("failed to start chrome: %v", err))
		return OutcomeFailedToStart, fmt.Errorf("failed to start chrome: %w", err)
	}
	l.zl.Info("chrome started", zap.Int("pid", cmd.Process.Pid), zap.Duration("timeout", timeout))

	stopWatch := watchCrashDumps(log, l.zl)
	defer stopWatch()

	outcome, err := l.wait(ctx, cmd, log, timeout)
	if outcome != OutcomeStable {
		// The process is gone; its captured output is now evidence.
		log.Info("launcher", fmt.Sprintf("chrome output captured to %s", chromeOutputFile))
	}
	return outcome, err
}

// wait blocks until the child exits or the stability timeout elapses,
// re-checking at a fixed small interval.
func (l *Launcher) wait(ctx context.Context, cmd *exec.Cmd, log *logging.Logger, timeout time.Duration) (Outcome, error) {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-done:
			return l.classifyExit(cmd, waitErr, log)
		case <-deadline:
			log.Info("launcher", fmt.Sprintf("chrome alive after %s - launch considered stable", timeout))
			return OutcomeStable, nil
		case <-ctx.Done():
			log.Warning("launcher", "wait interrupted, leaving chrome running")
			return OutcomeStable, ctx.Err()
		case <-ticker.C:
			// Re-check loop; the channels above carry the state.
		}
	}
}

// classifyExit maps a pre-timeout exit to its outcome.
func (l *Launcher) classifyExit(cmd *exec.Cmd, waitErr error, log *logging.Logger) (Outcome, error) {
	if waitErr == nil {
		log.Warning("launcher", "chrome exited cleanly before the stability timeout")
		return OutcomeExitedEarly, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		log.Error("launcher", fmt.Sprintf("chrome exited with code %d before the stability timeout", code))
		return OutcomeFailedToStart, fmt.Errorf("%w (exit code %d)", ErrChromeExited, code)
	}
	log.Error("launcher", fmt.Sprintf("chrome wait failed: %v", waitErr))
	return OutcomeFailedToStart, fmt.Errorf("chrome wait failed: %w", waitErr)
}

// limitedWriter caps the captured browser output; a crashing Chrome can
// be extremely chatty on stderr.
type limitedWriter struct {
	w       io.Writer
	max     int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		p = p[:remaining]
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return n, err
}
