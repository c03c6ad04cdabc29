// Package diag collects lightweight crash diagnostics from the host:
// the last minute of kernel messages, recent Chrome journal entries,
// and coredump listings. Every probe is an independent point-in-time
// snapshot: a missing or failing tool produces one WARNING record and
// collection moves on, because partial results always beat aborting.
package diag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chromedoctor/internal/logging"
)

// Probe is one bounded read-only query against an external tool.
type Probe struct {
	// Source tags the records this probe emits.
	Source string
	Binary string
	Args   []string
}

// probeTimeout bounds each individual tool invocation.
const probeTimeout = 15 * time.Second

// Probes returns the fixed, ordered probe list. journalLines bounds the
// journalctl queries; values outside [10, 10000] are clamped by the
// config layer before they reach here.
func Probes(journalLines int) []Probe {
	n := strconv.Itoa(journalLines)
	return []Probe{
		{
			Source: "dmesg",
			Binary: "dmesg",
			Args:   []string{"--since", "-1min", "--time-format", "iso"},
		},
		{
			Source: "journal",
			Binary: "journalctl",
			Args:   []string{"-n", n, "--no-pager", "_COMM=chrome"},
		},
		{
			Source: "journal-user",
			Binary: "journalctl",
			Args:   []string{"--user", "-n", n, "--no-pager", "_COMM=chrome"},
		},
		{
			Source: "coredump",
			Binary: "coredumpctl",
			Args:   []string{"list", "google-chrome", "--no-pager"},
		},
	}
}

// Collector runs the probe list against a session logger.
type Collector struct {
	probes []Probe
}

// NewCollector builds a collector with the standard probe list.
func NewCollector(journalLines int) *Collector {
	return &Collector{probes: Probes(journalLines)}
}

// Collect runs every probe in order and forwards each non-empty output
// line as an INFO record tagged with the probe's source. Tool failures
// degrade to a single WARNING record per probe. After the raw capture a
// crash-pattern scan over the dmesg lines emits WARNING records with
// source "analysis". Collect itself only fails on context cancellation.
func (c *Collector) Collect(ctx context.Context, log *logging.Logger) error {
	var dmesgLines []string

	for _, probe := range c.probes {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := runProbe(ctx, probe.Binary, probe.Args, probeTimeout)
		if err != nil {
			if errors.Is(err, ErrToolUnavailable) {
				log.Warning(probe.Source, fmt.Sprintf("%s not available on this system", probe.Binary))
			} else {
				log.Warning(probe.Source, fmt.Sprintf("collection failed: %v", err))
			}
			continue
		}

		lines := splitLines(result.Output)
		for _, line := range lines {
			log.Info(probe.Source, line)
		}
		if result.Truncated {
			log.Warning(probe.Source, "output truncated at capture limit")
		}
		if probe.Source == "dmesg" {
			dmesgLines = lines
		}
	}

	for _, finding := range AnalyzeCrashPatterns(dmesgLines) {
		log.Warning("analysis", finding)
	}
	return nil
}

// splitLines breaks tool output into trimmed, non-empty lines.
func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
