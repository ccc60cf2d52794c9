package matcher

import (
	"path/filepath"
	"strconv"
)

// suppressor holds suppression entries: pattern sources, file basenames and
// "basename:line" locations.
type suppressor map[string]struct{}

func newSuppressor(entries []string) suppressor {
	if len(entries) == 0 {
		return nil
	}
	s := make(suppressor, len(entries))
	for _, e := range entries {
		if e != "" {
			s[e] = struct{}{}
		}
	}
	return s
}

func (s suppressor) has(key string) bool {
	_, ok := s[key]
	return ok
}

// pattern reports whether a pattern source is suppressed.
func (s suppressor) pattern(source string) bool {
	return s.has(source)
}

// file reports whether a whole file is suppressed by its basename.
func (s suppressor) file(filePath string) bool {
	return s.has(filepath.Base(filePath))
}

// line reports whether a single line of a file is suppressed.
func (s suppressor) line(filePath string, line int) bool {
	return s.has(filepath.Base(filePath) + ":" + strconv.Itoa(line))
}
