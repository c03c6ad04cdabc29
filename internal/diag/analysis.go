package diag

import (
	"fmt"
	"regexp"
	"strings"
)

// crashPatterns maps a known failure class to the kernel-log signatures
// that betray it. Matching is best-effort triage, not proof.
var crashPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{
		name: "seccomp violation",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)seccomp.*chrom`),
			regexp.MustCompile(`(?i)chrom.*seccomp`),
		},
	},
	{
		name: "GPU hang",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)i915.*hang`),
			regexp.MustCompile(`(?i)amdgpu.*hang`),
			regexp.MustCompile(`(?i)gpu.*hang`),
			regexp.MustCompile(`(?i)ring.*timeout`),
		},
	},
	{
		name: "OOM kill",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)oom-killer.*chrom`),
			regexp.MustCompile(`(?i)out of memory.*chrom`),
		},
	},
	{
		name: "segfault",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)chrom.*segfault`),
			regexp.MustCompile(`(?i)chrom.*SIGSEGV`),
		},
	},
}

// AnalyzeCrashPatterns scans collected dmesg lines for known crash
// signatures and returns one human-readable finding per matched class.
func AnalyzeCrashPatterns(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	text := strings.Join(lines, "\n")

	var findings []string
	for _, class := range crashPatterns {
		for _, re := range class.patterns {
			if re.MatchString(text) {
				findings = append(findings, fmt.Sprintf("possible %s detected in kernel log", class.name))
				break
			}
		}
	}
	return findings
}
