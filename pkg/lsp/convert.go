package lsp

import (
	"fortio.org/safecast"

	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/lsp/protocol"
	"github.com/walteh/boolsp/pkg/position"
)

// point converts a protocol position to a 1-based line and column.
func point(p protocol.Position) (line, col int) {
	return int(p.Line) + 1, int(p.Character) + 1
}

func fromRange(r protocol.Range) position.Range {
	return position.Range{
		Start: position.Place{Line: int(r.Start.Line), Character: int(r.Start.Character)},
		End:   position.Place{Line: int(r.End.Line), Character: int(r.End.Character)},
	}
}

func toRange(s position.Span) (protocol.Range, error) {
	line, char, length, err := s.Uint32()
	if err != nil {
		return protocol.Range{}, err
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: char},
		End:   protocol.Position{Line: line, Character: char + length},
	}, nil
}

// markerRange covers at least one character so zero-length markers stay
// visible.
func markerRange(m diagnostic.Marker) (protocol.Range, error) {
	line, err := safecast.Conv[uint32](m.Line - 1)
	if err != nil {
		return protocol.Range{}, err
	}
	char, err := safecast.Conv[uint32](m.Column - 1)
	if err != nil {
		return protocol.Range{}, err
	}
	length, err := safecast.Conv[uint32](max(m.Length, 1))
	if err != nil {
		return protocol.Range{}, err
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: char},
		End:   protocol.Position{Line: line, Character: char + length},
	}, nil
}
