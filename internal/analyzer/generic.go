package analyzer

import (
	"bufio"
	"fmt"
	"strings"
)

// maxFindingLength bounds how much of a matched line is kept.
const maxFindingLength = 200

var errorMarkers = []string{
	"Traceback (most recent call last)",
	"ERROR",
	"Error:",
	"error:",
	"error TS",
	"fatal:",
	"FAILED",
	"npm ERR!",
	"panic:",
	"Exception",
	"SyntaxError",
	"ImportError",
}

var warningMarkers = []string{
	"WARNING",
	"warning:",
	"WARN",
	"DeprecationWarning",
	"npm WARN",
}

// scanGeneric scans output line by line against the fixed marker catalogue.
// Matches are truncated and de-duplicated within the single analysis call.
// A non-zero exit with no matched marker still yields one issue so a silent
// failure is never invisible.
func scanGeneric(output string, exitCode int, res *Result) {
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if marker := matchAny(line, errorMarkers); marker != "" {
			finding := clip(line)
			if !seen[finding] {
				seen[finding] = true
				res.Issues = append(res.Issues, finding)
			}
			continue
		}

		if marker := matchAny(line, warningMarkers); marker != "" {
			finding := clip(line)
			if !seen[finding] {
				seen[finding] = true
				res.Warnings = append(res.Warnings, finding)
			}
		}
	}

	if exitCode != 0 && len(res.Issues) == 0 {
		res.Issues = append(res.Issues, fmt.Sprintf("process exited with code %d", exitCode))
	}
}

func matchAny(line string, markers []string) string {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return m
		}
	}
	return ""
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= maxFindingLength {
		return s
	}
	return string(runes[:maxFindingLength]) + "..."
}
