package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chromedoctor/internal/config"
	"chromedoctor/internal/diag"
	"chromedoctor/internal/launcher"
	"chromedoctor/internal/logging"
	"chromedoctor/internal/session"
	"chromedoctor/internal/sysinfo"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	timeoutSec int

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chromedoctor",
	Short: "chromedoctor - Chrome crash troubleshooting for Linux desktops",
	Long: `chromedoctor launches Chrome with safety flags, detects early crashes
via a timeout heuristic, and collects diagnostics (kernel messages,
journal entries, crash dumps) into a per-run session directory.

Typical workflow:
  chromedoctor launch          # start Chrome, create a forensic session
  chromedoctor diag            # append diagnostics to the latest session`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// launchCmd starts Chrome and creates a forensic session
var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Start Chrome with safe flags and create a forensic session",
	Long: `Starts Chrome with a curated safe-flag set and waits for it to prove
stable. If Chrome is still running when the timeout elapses the launch
is considered successful and the browser is left running. An early exit
is recorded in the session for later analysis with 'diag'.`,
	RunE: runLaunch,
}

// diagCmd appends diagnostics to the latest session
var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Append diagnostics to the most recent session",
	Long: `Collects lightweight diagnostics - the last minute of kernel messages,
recent Chrome journal entries, and coredump listings - and appends them
to the most recent session created by 'launch'.`,
	RunE: runDiag,
}

// sessionsCmd groups session maintenance commands
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and prune forensic sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions, oldest first",
	RunE:  runSessionsList,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old sessions past the retention window",
	RunE:  runSessionsPrune,
}

// statusCmd shows configuration and dependency availability
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and system dependency status",
	RunE:  runStatus,
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the chromedoctor version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file path")

	launchCmd.Flags().IntVar(&timeoutSec, "timeout", 0, "Seconds to consider Chrome stable (default from config)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, launcher.ErrChromeNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// interruptibleContext returns a context cancelled on SIGINT/SIGTERM.
func interruptibleContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runLaunch creates a session and launches Chrome through it.
func runLaunch(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptibleContext()
	defer cancel()

	timeout := cfg.GetLaunchTimeout()
	if cmd.Flags().Changed("timeout") {
		timeout = time.Duration(timeoutSec) * time.Second
	}

	sess, err := session.Create(cfg.BaseDir)
	if err != nil {
		return err
	}
	slog, err := logging.Open(sess, sinkOptions())
	if err != nil {
		return err
	}
	defer slog.Close()

	slog.Info("logger", fmt.Sprintf("session started: %s", sess.Name))
	sysinfo.Collect(ctx).LogTo(slog)

	l := launcher.New(cfg, logger)
	outcome, err := l.Launch(ctx, sess, slog, timeout)
	logger.Info("launch finished", zap.String("outcome", string(outcome)), zap.String("session", sess.Path))

	if err != nil {
		return fmt.Errorf("launch failed: %w", err)
	}
	fmt.Printf("Session created: %s\n", sess.Path)

	// Opportunistic retention sweep; never fails the launch.
	if removed, err := session.Prune(cfg.BaseDir, cfg.GetRotateAge(), cfg.KeepLatest); err != nil {
		logger.Warn("session prune failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("pruned old sessions", zap.Int("removed", removed))
	}
	return nil
}

// runDiag collects diagnostics into the most recent session. "Latest"
// is resolved here at the CLI boundary; the collector itself only ever
// sees an explicit session.
func runDiag(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptibleContext()
	defer cancel()

	sess, err := session.Latest(cfg.BaseDir)
	if err != nil {
		if errors.Is(err, session.ErrNoSessions) {
			// Deliberately a friendly warning, not a failure: there is
			// simply nothing to diagnose yet.
			fmt.Println("No session found. Run 'chromedoctor launch' first.")
			return nil
		}
		return err
	}

	slog, err := logging.Open(sess, sinkOptions())
	if err != nil {
		return err
	}
	defer slog.Close()

	collector := diag.NewCollector(cfg.JournalLines)
	if err := collector.Collect(ctx, slog); err != nil {
		return fmt.Errorf("diagnostics interrupted: %w", err)
	}
	fmt.Printf("Diagnostics added to: %s\n", sess.Path)
	return nil
}

// runSessionsList lists sessions with their record counts.
func runSessionsList(cmd *cobra.Command, args []string) error {
	sessions, err := session.List(cfg.BaseDir)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, sess := range sessions {
		records, err := logging.ReadJSONL(sess.Path)
		if err != nil {
			fmt.Printf("%s  (unreadable: %v)\n", sess.Name, err)
			continue
		}
		fmt.Printf("%s  %d records\n", sess.Name, len(records))
	}
	return nil
}

// runSessionsPrune removes sessions past the retention window.
func runSessionsPrune(cmd *cobra.Command, args []string) error {
	removed, err := session.Prune(cfg.BaseDir, cfg.GetRotateAge(), cfg.KeepLatest)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d session(s)\n", removed)
	return nil
}

// runStatus prints configuration and dependency availability.
func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("chromedoctor status")
	fmt.Println("===================")
	fmt.Printf("Version:        %s\n", version)
	fmt.Printf("Base directory: %s\n", cfg.BaseDir)
	fmt.Printf("Launch timeout: %s\n", cfg.GetLaunchTimeout())
	fmt.Printf("Journal lines:  %d\n", cfg.JournalLines)
	fmt.Printf("Retention:      %d days (keep newest %d)\n", cfg.RotateDays, cfg.KeepLatest)
	fmt.Printf("Sinks:          sqlite=%v json=%v colors=%v\n",
		cfg.EnableSQLite, cfg.EnableJSON, cfg.EnableColors)
	fmt.Println()

	if path, err := launcher.FindChrome(cfg); err == nil {
		fmt.Printf("✓ Chrome: %s\n", path)
	} else {
		fmt.Println("✗ Chrome: not found")
	}
	for tool, ok := range sysinfo.CheckDependencies() {
		mark := "✓"
		if !ok {
			mark = "✗"
		}
		fmt.Printf("%s %s\n", mark, tool)
	}

	if sess, err := session.Latest(cfg.BaseDir); err == nil {
		fmt.Printf("\nLatest session: %s\n", sess.Name)
	} else {
		fmt.Println("\nNo sessions yet")
	}
	return nil
}

// sinkOptions maps the config toggles onto logger options.
func sinkOptions() logging.Options {
	return logging.Options{
		JSONL:    cfg.EnableJSON,
		SQLite:   cfg.EnableSQLite,
		Terminal: true,
		Colors:   cfg.EnableColors,
	}
}
