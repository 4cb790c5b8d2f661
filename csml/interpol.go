package csml

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	eof        rune = -1
	leftDelim       = "{{"
	rightDelim      = "}}"
)

// reader is a cursor over the normalized markup source.
type reader struct {
	src string
	pos int
}

func (r *reader) rest() string {
	return r.src[r.pos:]
}

func (r *reader) readString(s string) (string, bool) {
	if !strings.HasPrefix(r.rest(), s) {
		return "", false
	}
	r.pos += len(s)
	return s, true
}

// readRegexp consumes the match of an anchored regexp. An empty match counts.
func (r *reader) readRegexp(re *regexp.Regexp) (string, bool) {
	rest := r.rest()
	loc := re.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return "", false
	}
	r.pos += loc[1]
	return rest[:loc[1]], true
}

// readInterpolable reads literal runs matching re, interleaved with {{ }}
// placeholders. It reports false if nothing at all was read.
func (r *reader) readInterpolable(re *regexp.Regexp) (Splice, bool, *scanError) {
	var s Splice
	for {
		rest := r.rest()
		open := strings.Index(rest, leftDelim)
		if open < 0 {
			open = len(rest)
		}
		m := re.FindString(rest[:open])
		s.addString(m)
		r.pos += len(m)
		if len(m) != open || open == len(rest) {
			break
		}
		code, n, err := scanPlaceholder(rest[open:])
		if err != nil {
			err.offset += r.pos
			return Splice{}, false, err
		}
		s.addExpr(code)
		r.pos += n
	}
	if s.IsEmpty() {
		return Splice{}, false, nil
	}
	return s, true, nil
}

// scanError is a lexical error at a byte offset.
type scanError struct {
	offset int
	msg    string
}

func (e *scanError) Error() string {
	return e.msg
}

// scanPlaceholder scans a placeholder at the start of input and returns its
// inner code and the number of bytes consumed.
func scanPlaceholder(input string) (string, int, *scanError) {
	l := &lexer{input: input}
	for state := lexLeftDelim; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return "", 0, l.err
	}
	return l.code, l.pos, nil
}

// Implementation of the placeholder lexer based on https://go.dev/talks/2011/lex.slide

// lexer holds the state of the placeholder scanner.
type lexer struct {
	input string // the string being scanned
	start int    // start of the placeholder code
	pos   int    // current position in the input
	width int    // width of last rune read from input
	code  string
	err   *scanError
}

// stateFn represents the state of the scanner
// as a function that returns the next state.
type stateFn func(*lexer) stateFn

// next returns the next rune in the input.
func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

// errorf records an error and terminates the scan.
func (l *lexer) errorf(format string, args ...any) stateFn {
	l.err = &scanError{offset: l.pos, msg: fmt.Sprintf(format, args...)}
	return nil
}

func lexLeftDelim(l *lexer) stateFn {
	l.pos += len(leftDelim)
	l.start = l.pos
	return lexInside
}

func lexInside(l *lexer) stateFn {
	rest := l.input[l.pos:]
	switch {
	case strings.HasPrefix(rest, rightDelim):
		l.code = l.input[l.start:l.pos]
		l.pos += len(rightDelim)
		return nil
	case strings.HasPrefix(rest, leftDelim):
		return l.errorf("interpolations cannot be nested")
	}
	switch r := l.next(); r {
	case eof, '\n':
		l.pos = 0
		return l.errorf("unended interpolation")
	case '\'', '"', '`':
		return lexQuote(r)
	}
	return lexInside
}

// lexQuote skips a string literal inside the placeholder code.
func lexQuote(quote rune) stateFn {
	return func(l *lexer) stateFn {
		for {
			switch r := l.next(); r {
			case eof, '\n':
				l.pos = 0
				return l.errorf("unended interpolation")
			case '\\':
				l.next()
			case quote:
				return lexInside
			}
		}
	}
}
