// Package sysinfo captures a point-in-time snapshot of the host facts
// that matter when Chrome misbehaves: distribution, kernel, display
// session type, SELinux mode, and GPU vendor.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"chromedoctor/internal/logging"
)

// Snapshot is the collected host state. Empty fields mean the probe was
// unavailable, not that the fact is absent.
type Snapshot struct {
	OSName         string
	Kernel         string
	Architecture   string
	SessionType    string // x11, wayland, tty
	Desktop        string
	Display        string
	WaylandDisplay string
	SELinux        string
	GPUVendor      string
}

const cmdTimeout = 5 * time.Second

// Collect gathers the snapshot. Individual probe failures leave their
// field empty; Collect never fails as a whole.
func Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		SessionType:    os.Getenv("XDG_SESSION_TYPE"),
		Desktop:        os.Getenv("XDG_CURRENT_DESKTOP"),
		Display:        os.Getenv("DISPLAY"),
		WaylandDisplay: os.Getenv("WAYLAND_DISPLAY"),
	}

	snap.OSName = readOSRelease()
	snap.Kernel = run(ctx, "uname", "-r")
	snap.Architecture = run(ctx, "uname", "-m")
	snap.SELinux = strings.ToLower(run(ctx, "getenforce"))
	snap.GPUVendor = detectGPUVendor(ctx)
	return snap
}

// LogTo writes the snapshot as DEBUG records with source "sysinfo".
func (s Snapshot) LogTo(log *logging.Logger) {
	fields := []struct{ name, value string }{
		{"os", s.OSName},
		{"kernel", s.Kernel},
		{"arch", s.Architecture},
		{"session_type", s.SessionType},
		{"desktop", s.Desktop},
		{"display", s.Display},
		{"wayland_display", s.WaylandDisplay},
		{"selinux", s.SELinux},
		{"gpu_vendor", s.GPUVendor},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		log.Debug("sysinfo", fmt.Sprintf("%s=%s", f.name, f.value))
	}
}

// readOSRelease extracts PRETTY_NAME from /etc/os-release.
func readOSRelease() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if value, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}

// detectGPUVendor infers the primary GPU vendor from lspci output.
func detectGPUVendor(ctx context.Context) string {
	output := strings.ToLower(run(ctx, "lspci"))
	if output == "" {
		return ""
	}
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "vga") && !strings.Contains(line, "3d") && !strings.Contains(line, "display") {
			continue
		}
		switch {
		case strings.Contains(line, "nvidia"):
			return "nvidia"
		case strings.Contains(line, "amd"), strings.Contains(line, "radeon"), strings.Contains(line, "ati"):
			return "amd"
		case strings.Contains(line, "intel"):
			return "intel"
		}
	}
	return "unknown"
}

// run executes a short read-only probe and returns its trimmed stdout,
// or the empty string when the tool is missing or errors.
func run(ctx context.Context, binary string, args ...string) string {
	if _, err := exec.LookPath(binary); err != nil {
		return ""
	}
	runCtx, cancel := context.WithTimeout(ctx, cmdTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, binary, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// CheckDependencies reports which external tools the diagnostics and
// launch paths rely on are present on this system.
func CheckDependencies() map[string]bool {
	deps := make(map[string]bool)
	for _, tool := range []string{"dmesg", "journalctl", "coredumpctl", "lspci", "getenforce"} {
		_, err := exec.LookPath(tool)
		deps[tool] = err == nil
	}
	return deps
}
