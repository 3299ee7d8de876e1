// Package hover renders the hover tooltip for a point in a compiled file.
package hover

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walteh/boolsp/pkg/position"
)

// HoverInfo represents the information to be displayed in a hover tooltip
type HoverInfo struct {
	// Content holds markdown sections, rendered in order
	Content []string
	// Span is the source range the hover applies to
	Span position.Span
}

// Markdown joins the content sections with horizontal rules.
func (h *HoverInfo) Markdown() string {
	if h == nil {
		return ""
	}
	return strings.Join(h.Content, "\n\n---\n\n")
}

// ForPoint returns the hover for the 1-based point, taken from the innermost
// entry that has a description. It returns nil when there is nothing to show.
func ForPoint(ctx context.Context, ix *position.Index, line, col int) *HoverInfo {
	var best *position.Entry
	var text string
	for _, e := range ix.Entries() {
		if e.Span.Line > line {
			break
		}
		if !e.Span.Contains(line, col) {
			continue
		}
		if best != nil && e.Span.Length() >= best.Span.Length() {
			continue
		}
		desc, ok := e.Description()
		if !ok {
			continue
		}
		best, text = e, desc
	}

	if best == nil {
		zerolog.Ctx(ctx).Trace().Int("line", line).Int("col", col).Msg("no hover")
		return nil
	}

	zerolog.Ctx(ctx).Debug().Str("span", best.Span.String()).Str("format", string(best.Format)).Msg("hover")

	return &HoverInfo{
		Content: []string{codeBlock(text)},
		Span:    best.Span,
	}
}

func codeBlock(s string) string {
	return "```boo\n" + s + "\n```"
}
