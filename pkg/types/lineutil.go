package types

import (
	"sort"
	"strings"
)

// LineIndex maps character offsets to 1-based line numbers.
// Offsets are rune indexes, the unit the regex engine reports.
type LineIndex struct {
	starts []int // rune offset where each line begins
	lines  []string
}

// NewLineIndex splits runes on '\n' and records line starts.
func NewLineIndex(runes []rune) *LineIndex {
	idx := &LineIndex{starts: []int{0}}
	for i, r := range runes {
		if r == '\n' {
			idx.starts = append(idx.starts, i+1)
		}
	}
	idx.lines = strings.Split(string(runes), "\n")
	return idx
}

// Line returns the 1-based line containing the rune offset.
func (li *LineIndex) Line(offset int) int {
	// first start strictly greater than offset, minus one
	return sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
}

// Count returns the number of lines.
func (li *LineIndex) Count() int {
	return len(li.lines)
}

// Text returns line n (1-based) without its trailing carriage return.
func (li *LineIndex) Text(n int) string {
	if n < 1 || n > len(li.lines) {
		return ""
	}
	return strings.TrimSuffix(li.lines[n-1], "\r")
}

// Window returns lines n-radius..n+radius clamped to the content.
func (li *LineIndex) Window(n, radius int) []ContextLine {
	from, to := n-radius, n+radius
	if from < 1 {
		from = 1
	}
	if to > len(li.lines) {
		to = len(li.lines)
	}
	out := make([]ContextLine, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, ContextLine{Number: i, Content: li.Text(i)})
	}
	return out
}

// WindowText joins lines n-radius..n+radius with newlines.
func (li *LineIndex) WindowText(n, radius int) string {
	var b strings.Builder
	for i, l := range li.Window(n, radius) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Content)
	}
	return b.String()
}
