// Package capture normalizes raw agent output and gates it for extraction
// (spec §4.1): the cleaner strips escape sequences and collapses
// whitespace, the gate rejects input too short, too noisy, or too
// low-entropy to be worth extracting.
package capture

import (
	"regexp"
	"strings"
)

var (
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	innerSpaces = regexp.MustCompile(`[ \t]+`)
)

// Clean strips terminal escape sequences, collapses runs of three or more
// newlines down to two, and collapses intra-line whitespace to a single
// space — in that order, since escape stripping can itself introduce runs
// of blank lines that still need collapsing.
func Clean(raw string) string {
	s := ansiEscape.ReplaceAllString(raw, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(innerSpaces.ReplaceAllString(line, " "), " ")
	}
	return strings.Join(lines, "\n")
}
