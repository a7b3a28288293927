package database

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Changes lists rendered team lines that appeared or disappeared between two
// snapshots.
type Changes struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool { return len(c.Added) == 0 && len(c.Removed) == 0 }

// Summary renders the changes as "+ line" / "- line" rows, removals first.
func (c Changes) Summary() string {
	if c.Empty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d added, %d removed\n", len(c.Added), len(c.Removed))
	for _, l := range c.Removed {
		b.WriteString("- " + l + "\n")
	}
	for _, l := range c.Added {
		b.WriteString("+ " + l + "\n")
	}
	return b.String()
}

// DiffContent compares two rendered team lists line by line.
func DiffContent(before, after string) Changes {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var c Changes
	for _, d := range diffs {
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				c.Added = append(c.Added, line)
			case diffmatchpatch.DiffDelete:
				c.Removed = append(c.Removed, line)
			}
		}
	}
	return c
}
