package callstack

import "strings"

// excerpt cuts a ±window line slice around pausedLine (1-based) out of the
// full script source. Lines outside the script are clamped, never padded.
func excerpt(source string, pausedLine, window int) *SourceExcerpt {
	lines := strings.Split(source, "\n")

	start := pausedLine - window
	if start < 1 {
		start = 1
	}
	end := pausedLine + window
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		// Paused line beyond the fetched source (e.g. inline script offset).
		// Return the tail so the excerpt is never empty for non-empty source.
		start = len(lines)
	}

	return &SourceExcerpt{
		StartLine:   start,
		EndLine:     end,
		CurrentLine: pausedLine,
		Lines:       lines[start-1 : end],
	}
}
