package workspace

import (
	"strings"

	"github.com/walteh/boolsp/pkg/position"
)

// Edit is one content change of an open buffer. A Full edit replaces the
// whole text; otherwise Range (zero-based, byte columns) is replaced by Text.
type Edit struct {
	Full  bool
	Range position.Range
	Text  string
}

func (e Edit) apply(text string) string {
	if e.Full {
		return e.Text
	}
	start := offsetOf(text, e.Range.Start)
	end := offsetOf(text, e.Range.End)
	if end < start {
		start, end = end, start
	}
	return text[:start] + e.Text + text[end:]
}

// offsetOf clamps p into text and returns its byte offset.
func offsetOf(text string, p position.Place) int {
	off := 0
	for line := 0; line < p.Line; line++ {
		i := strings.IndexByte(text[off:], '\n')
		if i < 0 {
			return len(text)
		}
		off += i + 1
	}
	lineEnd := len(text)
	if i := strings.IndexByte(text[off:], '\n'); i >= 0 {
		lineEnd = off + i
	}
	return min(off+max(p.Character, 0), lineEnd)
}
