package flows

import (
	"bytes"
	"fmt"
	"strings"
)

// Composite files are shared hosts: a concatenation of marker-
// delimited sections, one per contributing package. Writing replaces
// only the bytes between a package's own markers; other sections are
// left byte-identical.

// Markers wraps section marker lines in a platform's comment syntax.
type Markers struct {
	Leader  string
	Trailer string
}

// DefaultMarkers is used when a platform declares no comment syntax.
var DefaultMarkers = Markers{Leader: "#"}

func (m Markers) begin(pkg string) string {
	return strings.TrimSpace(fmt.Sprintf("%s lodge:begin %s %s", m.Leader, pkg, m.Trailer))
}

func (m Markers) end(pkg string) string {
	return strings.TrimSpace(fmt.Sprintf("%s lodge:end %s %s", m.Leader, pkg, m.Trailer))
}

// findSection returns the byte offsets [start, end) of a package's
// full section (markers included) plus ok, scanning line by line.
func findSection(data []byte, m Markers, pkg string) (int, int, bool) {
	begin := []byte(m.begin(pkg))
	end := []byte(m.end(pkg))

	offset := 0
	start := -1
	for _, line := range bytes.SplitAfter(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		switch {
		case start < 0 && bytes.Equal(trimmed, begin):
			start = offset
		case start >= 0 && bytes.Equal(trimmed, end):
			return start, offset + len(line), true
		}
		offset += len(line)
	}
	return 0, 0, false
}

// WriteSection replaces a package's section in a composite host file,
// appending a new section when none exists yet.
func WriteSection(existing []byte, m Markers, pkg string, content []byte) []byte {
	content = bytes.TrimRight(content, "\n")
	section := []byte(m.begin(pkg) + "\n")
	section = append(section, content...)
	if len(content) > 0 {
		section = append(section, '\n')
	}
	section = append(section, []byte(m.end(pkg)+"\n")...)

	if start, end, ok := findSection(existing, m, pkg); ok {
		out := make([]byte, 0, len(existing)-(end-start)+len(section))
		out = append(out, existing[:start]...)
		out = append(out, section...)
		out = append(out, existing[end:]...)
		return out
	}

	out := append([]byte(nil), existing...)
	if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
		out = append(out, '\n')
	}
	if len(out) > 0 {
		out = append(out, '\n')
	}
	return append(out, section...)
}

// StripSection removes a package's section from a composite host
// file. It reports whether a section was found; the host file itself
// is never deleted by stripping, even when the remainder is empty.
func StripSection(existing []byte, m Markers, pkg string) ([]byte, bool) {
	start, end, ok := findSection(existing, m, pkg)
	if !ok {
		return existing, false
	}
	out := make([]byte, 0, len(existing)-(end-start))
	out = append(out, existing[:start]...)
	tail := existing[end:]
	// Collapse the separator blank line left behind by removal.
	if bytes.HasSuffix(out, []byte("\n\n")) {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		tail = bytes.TrimLeft(tail, "\n")
	}
	out = append(out, tail...)
	return out, true
}
