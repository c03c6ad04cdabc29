package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"chromedoctor/internal/logging"
)

// crashReportDirs lists the per-profile locations where Crashpad drops
// minidumps, relative to the user's config directory.
var crashReportDirs = []string{
	"google-chrome/Crash Reports",
	"google-chrome/Crashpad/pending",
	"chromium/Crash Reports",
	"chromium/Crashpad/pending",
}

// watchCrashDumps watches Chrome's crash-report directories for the
// duration of the launch wait window and logs every new minidump as an
// ERROR record with source "crashpad". Returns a stop function; when no
// watchable directory exists the watch is a no-op.
func watchCrashDumps(log *logging.Logger, zl *zap.Logger) (stop func()) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zl.Debug("crash dump watch unavailable", zap.Error(err))
		return func() {}
	}

	watching := 0
	for _, rel := range crashReportDirs {
		dir := filepath.Join(configDir, rel)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			zl.Debug("failed to watch crash dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watching++
	}
	if watching == 0 {
		watcher.Close()
		return func() {}
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) && strings.HasSuffix(ev.Name, ".dmp") {
					select {
					case events <- ev.Name:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zl.Debug("crash dump watch error", zap.Error(err))
			}
		}
	}()

	return func() {
		watcher.Close()
		// Drain what the watcher saw before it closed; the session
		// logger is single-writer, so dumps are recorded here rather
		// than from the watch goroutine.
		for name := range events {
			log.Error("crashpad", fmt.Sprintf("new crash dump: %s", name))
		}
	}
}
