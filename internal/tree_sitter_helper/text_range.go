package treesitterhelper

import (
	"bytes"
)

// Position is a zero-based line and byte column.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// OffsetAt converts pos to a byte offset. Columns past the end of the line
// are clamped to the line end; lines past the end of content fail.
func OffsetAt(content []byte, pos Position) (uint, bool) {
	offset := 0
	for line := uint32(0); line < pos.Line; line++ {
		next := bytes.IndexByte(content[offset:], '\n')
		if next < 0 {
			return 0, false
		}
		offset += next + 1
	}

	end := bytes.IndexByte(content[offset:], '\n')
	if end < 0 {
		end = len(content) - offset
	}
	return uint(offset + min(int(pos.Character), end)), true
}

// PositionAt converts a byte offset to a position. Offsets past the end of
// content map to the end.
func PositionAt(content []byte, offset uint) Position {
	offset = min(offset, uint(len(content)))
	before := content[:offset]

	line := bytes.Count(before, []byte("\n"))
	lineStart := bytes.LastIndexByte(before, '\n') + 1
	return Position{Line: uint32(line), Character: uint32(len(before) - lineStart)}
}
