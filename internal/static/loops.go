package static

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Loop analysis is a token heuristic, not a real parser: it tracks
// indentation for colon-style blocks and brace depth for brace-style
// blocks. That covers the Python and C-family output our worker agents
// produce. Anything the heuristic cannot follow fails open — the gate
// trades strictness for availability here, the paid review still runs.

var (
	loopHeaderRe    = regexp.MustCompile(`^(?:for|while)\b`)
	infiniteLoopRe  = regexp.MustCompile(`^while\s+(?:True|1)\s*:|^while\s*\(\s*(?:true|1)\s*\)|^for\s*\{`)
	sleepCallRe     = regexp.MustCompile(`(?i)\bsleep\s*\(`)
	loopExitTokenRe = regexp.MustCompile(`\b(?:break|return)\b`)
)

// parsedLine is one source line with comments stripped.
type parsedLine struct {
	num    int // 1-indexed
	indent int
	text   string // trimmed, comment-free
	blank  bool
}

// checkLoops runs the sleep-in-loop and unbounded-loop scans. A panic
// anywhere in the analysis is converted to "no findings" (fail open).
func (c *Checker) checkLoops(source string, toggles Toggles) (violations []Violation) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("loop analysis failed open", zap.Any("panic", r))
			violations = nil
		}
	}()

	lines := parseLines(source)

	for i, ln := range lines {
		if ln.blank || !loopHeaderRe.MatchString(ln.text) {
			continue
		}

		body := loopBody(lines, i)

		if toggles.SleepInLoop {
			if v, ok := findSleep(ln, body); ok {
				violations = append(violations, v)
			}
		}

		if toggles.UnboundedLoop && infiniteLoopRe.MatchString(ln.text) {
			if !hasLoopExit(body) {
				violations = append(violations, Violation{
					Key:      KeyUnboundedLoop,
					Detail:   fmt.Sprintf("infinite loop at line %d has no break or return", ln.num),
					Evidence: ln.text,
					Line:     ln.num,
				})
			}
		}
	}
	return violations
}

// findSleep reports the first sleep call inside the loop body, naming
// both the loop line and the sleep line.
func findSleep(header parsedLine, body []parsedLine) (Violation, bool) {
	for _, ln := range body {
		if ln.blank {
			continue
		}
		if sleepCallRe.MatchString(ln.text) {
			return Violation{
				Key:      KeySleepInLoop,
				Detail:   fmt.Sprintf("loop at line %d contains sleep call at line %d", header.num, ln.num),
				Evidence: ln.text,
				Line:     header.num,
			}, true
		}
	}
	return Violation{}, false
}

func hasLoopExit(body []parsedLine) bool {
	for _, ln := range body {
		if !ln.blank && loopExitTokenRe.MatchString(ln.text) {
			return true
		}
	}
	return false
}

// loopBody returns the lines belonging to the loop at index i:
// brace-delimited when the header opens a brace, otherwise every
// following line indented deeper than the header.
func loopBody(lines []parsedLine, i int) []parsedLine {
	header := lines[i]
	if strings.Contains(header.text, "{") {
		return braceBody(lines, i)
	}

	var body []parsedLine
	for j := i + 1; j < len(lines); j++ {
		ln := lines[j]
		if ln.blank {
			body = append(body, ln)
			continue
		}
		if ln.indent <= header.indent {
			break
		}
		body = append(body, ln)
	}
	return body
}

// braceBody collects lines until the brace opened on the header closes.
func braceBody(lines []parsedLine, i int) []parsedLine {
	depth := strings.Count(lines[i].text, "{") - strings.Count(lines[i].text, "}")
	if depth <= 0 {
		return nil
	}

	var body []parsedLine
	for j := i + 1; j < len(lines); j++ {
		ln := lines[j]
		depth += strings.Count(ln.text, "{") - strings.Count(ln.text, "}")
		if depth <= 0 {
			break
		}
		body = append(body, ln)
	}
	return body
}

// parseLines splits the source, strips comments, and computes
// indentation (tab counts as 4 columns).
func parseLines(source string) []parsedLine {
	raw := strings.Split(source, "\n")
	lines := make([]parsedLine, 0, len(raw))

	for i, r := range raw {
		stripped := stripComment(r)
		trimmed := strings.TrimSpace(stripped)
		lines = append(lines, parsedLine{
			num:    i + 1,
			indent: indentOf(r),
			text:   trimmed,
			blank:  trimmed == "",
		})
	}
	return lines
}

func indentOf(line string) int {
	indent := 0
	for _, r := range line {
		switch r {
		case ' ':
			indent++
		case '\t':
			indent += 4
		default:
			return indent
		}
	}
	return indent
}

// stripComment removes `#` and `//` comments outside string literals.
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote && (i == 0 || line[i-1] != '\\') {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return line[:i]
		case r == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}
