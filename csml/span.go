package csml

import (
	"strings"
	"unicode/utf8"
)

// Span represents a location in the (normalized) markup source.
type Span struct {
	Offset int // Byte offset in the source
	Line   int // 1-based line number
	Column int // 1-based column number (in runes, not bytes)
	Length int // Length in bytes
}

// IsZero returns true if the span is uninitialized
func (s Span) IsZero() bool {
	return s.Offset == 0 && s.Line == 0 && s.Column == 0 && s.Length == 0
}

// spanAt computes the line and column of the byte offset in src.
func spanAt(src string, offset, length int) Span {
	if offset > len(src) {
		offset = len(src)
	}
	before := src[:offset]
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return Span{
		Offset: offset,
		Line:   strings.Count(before, "\n") + 1,
		Column: utf8.RuneCountInString(before[lineStart:]) + 1,
		Length: length,
	}
}

// lineAt returns the source line containing the byte offset.
func lineAt(src string, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[offset:], '\n')
	if end < 0 {
		return src[start:]
	}
	return src[start : offset+end]
}
