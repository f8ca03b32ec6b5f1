package compile

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxLogErrors   = 10
	maxLogWarnings = 3
)

var (
	reMissingFile  = regexp.MustCompile("^! LaTeX Error: File `([^']+)' not found")
	rePackageError = regexp.MustCompile(`^! Package (\S+) Error: (.*)$`)
	reLineRef      = regexp.MustCompile(`^l\.(\d+)\s?(.*)$`)
	reFileLine     = regexp.MustCompile(`^(?:\./)?([^:\s]+\.tex):(\d+): (.*)$`)
	reBang         = regexp.MustCompile(`^! (.+)$`)
	reWarning      = regexp.MustCompile(`(?:LaTeX|Package \S+) Warning: (.*)$`)
)

// SummarizeLog extracts the errors from a TeX log, most relevant first.
// When no errors are present it returns up to three warnings instead.
func SummarizeLog(log string) []string {
	lines := strings.Split(strings.ReplaceAll(log, "\r\n", "\n"), "\n")
	var errs []string
	seen := map[string]bool{}
	add := func(msg string) {
		msg = strings.TrimSpace(msg)
		if msg == "" || seen[msg] || len(errs) >= maxLogErrors {
			return
		}
		seen[msg] = true
		errs = append(errs, msg)
	}

	for i, line := range lines {
		switch {
		case reMissingFile.MatchString(line):
			add("Missing file: " + reMissingFile.FindStringSubmatch(line)[1])
		case strings.HasPrefix(line, "! Undefined control sequence"):
			msg := "Undefined control sequence"
			if n, ctx, ok := lineRef(lines, i+1); ok {
				msg = fmt.Sprintf("Undefined control sequence at line %s: %s", n, ctx)
			}
			add(msg)
		case rePackageError.MatchString(line):
			m := rePackageError.FindStringSubmatch(line)
			add(fmt.Sprintf("Package %s error: %s", m[1], m[2]))
		case strings.HasPrefix(line, "! Emergency stop"):
			add("Emergency stop")
		case reFileLine.MatchString(line):
			m := reFileLine.FindStringSubmatch(line)
			add(fmt.Sprintf("%s line %s: %s", m[1], m[2], m[3]))
		case reBang.MatchString(line):
			msg := reBang.FindStringSubmatch(line)[1]
			if n, _, ok := lineRef(lines, i+1); ok {
				msg = fmt.Sprintf("%s (line %s)", msg, n)
			}
			add(msg)
		}
	}
	if len(errs) > 0 {
		return errs
	}

	var warnings []string
	for _, line := range lines {
		if m := reWarning.FindStringSubmatch(line); m != nil {
			warnings = append(warnings, "Warning: "+strings.TrimSpace(m[1]))
			if len(warnings) == maxLogWarnings {
				break
			}
		}
	}
	return warnings
}

// lineRef looks a few lines ahead for TeX's "l.<n> <context>" marker.
func lineRef(lines []string, from int) (string, string, bool) {
	for i := from; i < len(lines) && i < from+6; i++ {
		if m := reLineRef.FindStringSubmatch(lines[i]); m != nil {
			return m[1], strings.TrimSpace(m[2]), true
		}
		if strings.HasPrefix(lines[i], "! ") {
			break
		}
	}
	return "", "", false
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" || n <= 0 {
		return ""
	}
	idx := len(s)
	for i := 0; i < n; i++ {
		j := strings.LastIndexByte(s[:idx], '\n')
		if j < 0 {
			return s
		}
		idx = j
	}
	return s[idx+1:]
}
