package csml

import (
	"fmt"
	"strconv"
	"strings"
)

// tabWidth is the number of columns a tab counts for in indentation.
const tabWidth = 4

// term is an alternative of a grammar choice: a grammar symbol or a literal.
type term interface {
	match(p *processor) (any, bool)
	describe() string
}

// lit is a term matching a literal string.
type lit string

func (l lit) match(p *processor) (any, bool) {
	s, ok := p.r.readString(string(l))
	return s, ok
}

func (l lit) describe() string {
	return strconv.Quote(string(l))
}

func (s symbol) match(p *processor) (any, bool) {
	r := &grammar[s]
	switch {
	case r.fn != nil:
		return r.fn(p)
	case r.interpolable:
		v, ok, err := p.r.readInterpolable(r.pattern)
		if err != nil {
			p.errorf(err.offset, "%s", err.msg)
		}
		return v, ok
	default:
		v, ok := p.r.readRegexp(r.pattern)
		return v, ok
	}
}

func (s symbol) describe() string {
	return grammar[s].name
}

// manualTerm marks a value stored with processor.write.
type manualTerm struct{}

func (manualTerm) match(*processor) (any, bool) { return nil, false }
func (manualTerm) describe() string            { return "value" }

// field is a slot of a result frame.
type field int

const (
	fName field = iota
	fValue
	fArgs
	fType
	fTagName
	fID
	fClassNames
	fAttributes
	fFlags
	fText
	fStatement
	fDescendant
	fContent
	fLevel
	fTokens
)

// listFields are the frame slots that accumulate values.
var listFields = map[field]bool{
	fClassNames: true,
	fAttributes: true,
	fFlags:      true,
	fTokens:     true,
}

// frame is a structured result under construction.
type frame map[field]any

type match struct {
	t term
	v any
}

// processor is a backtracking recursive-descent parser driven by the grammar
// table. Rules build results with a stack of frames: open starts a frame, the
// last match is stored into the top frame with as, into and merge, and close
// pops it.
type processor struct {
	r     reader
	reg   *Registry
	stack []frame
	last  match
	level int
}

func newProcessor(src string, reg *Registry) *processor {
	return &processor{r: reader{src: src}, reg: reg}
}

// try attempts the alternatives in order. The first one that matches wins;
// a failed alternative leaves no trace on the input position, the frame stack
// or the level.
func (p *processor) try(alts ...term) *processor {
	for _, t := range alts {
		pos, depth, level := p.r.pos, len(p.stack), p.level
		if v, ok := t.match(p); ok {
			p.last = match{t: t, v: v}
			return p
		}
		p.r.pos, p.stack, p.level = pos, p.stack[:depth], level
	}
	p.last = match{}
	return p
}

// check is try that reports whether an alternative matched.
func (p *processor) check(alts ...term) bool {
	return p.try(alts...).matched() != nil
}

// expect is try that fails the parse when nothing matches.
func (p *processor) expect(alts ...term) *processor {
	if p.try(alts...).matched() != nil {
		return p
	}
	p.errorf(p.r.pos, "expected %s", humanize(alts))
	return p
}

func (p *processor) matched() term {
	return p.last.t
}

func (p *processor) get() any {
	return p.last.v
}

func (p *processor) write(v any) *processor {
	p.last = match{t: manualTerm{}, v: v}
	return p
}

func (p *processor) open() *processor {
	p.stack = append(p.stack, frame{})
	return p
}

func (p *processor) peek() frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *processor) close() frame {
	f := p.peek()
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

func (p *processor) abort() {
	p.close()
}

// as stores the last match into a slot of the top frame.
func (p *processor) as(f field) *processor {
	if top := p.peek(); top != nil && p.matched() != nil {
		top[f] = p.get()
	}
	return p
}

// into appends the last match to a list slot of the top frame.
func (p *processor) into(f field) *processor {
	if top := p.peek(); top != nil && p.matched() != nil {
		l, _ := top[f].([]any)
		top[f] = append(l, p.get())
	}
	return p
}

// merge copies the slots of the frame in the last match into the top frame.
func (p *processor) merge() *processor {
	top := p.peek()
	src, ok := p.get().(frame)
	if top == nil || p.matched() == nil || !ok {
		return p
	}
	for k, v := range src {
		if listFields[k] {
			l, _ := top[k].([]any)
			top[k] = append(l, v.([]any)...)
		} else {
			top[k] = v
		}
	}
	return p
}

// errorf aborts the parse with a *SyntaxError at the byte offset.
func (p *processor) errorf(offset int, format string, args ...any) {
	panic(&SyntaxError{
		Msg:  fmt.Sprintf(format, args...),
		Span: spanAt(p.r.src, offset, 0),
		Line: lineAt(p.r.src, offset),
	})
}

// recover turns a SyntaxError panic into an error return.
func (p *processor) recover(errp *error) {
	e := recover()
	if e == nil {
		return
	}
	if se, ok := e.(*SyntaxError); ok {
		*errp = se
		return
	}
	panic(e)
}

// preformatted asks the registry whether the selector captures block text.
func (p *processor) preformatted(tagName Splice, flags []any) bool {
	if p.reg == nil {
		return false
	}
	tag, _ := tagName.Literal()
	names := make([]string, 0, len(flags))
	for _, f := range flags {
		if name, ok := f.(FlagUse).Name.Literal(); ok {
			names = append(names, name)
		}
	}
	return p.reg.IsPreformatted(tag, names)
}

// humanize lists alternatives for an error message.
func humanize(alts []term) string {
	names := make([]string, len(alts))
	for i, t := range alts {
		names[i] = t.describe()
	}
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return "either " + names[0] + " or " + names[1]
	default:
		return "one of " + strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
}

// Parse parses markup into a token stream terminated by an EOFToken. The
// registry decides which lines capture indented block text.
func Parse(src string, reg *Registry) (tokens []Token, err error) {
	p := newProcessor(normalizeSource(src), reg)
	defer p.recover(&err)
	return p.all(), nil
}

func (p *processor) all() []Token {
	p.open()
	for p.try(symAny).into(fTokens).matched() != nil {
	}
	f := p.close()
	// trailing line breaks
	p.try(symIndentation)
	if !p.check(symEOF) {
		p.errorf(p.r.pos, "expected end of input")
	}
	l, _ := f[fTokens].([]any)
	tokens := make([]Token, 0, len(l)+1)
	for _, t := range l {
		tokens = append(tokens, t.(Token))
	}
	return append(tokens, Token{
		Kind:  EOFToken,
		Level: EOFLevel,
		Span:  spanAt(p.r.src, len(p.r.src), 0),
	})
}

// parseFlagSpec parses a flag given to the API: "name" or ":name(args)".
func parseFlagSpec(spec string) (f Flag, err error) {
	p := newProcessor(spec, nil)
	defer p.recover(&err)
	return p.expect(symSimpleFlag).get().(Flag), nil
}

// normalizeSource unifies line breaks, empties whitespace-only lines and
// expands indentation to spaces.
func normalizeSource(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		width, n := 0, 0
	indent:
		for ; n < len(line); n++ {
			switch line[n] {
			case ' ':
				width++
			case '\t':
				width += tabWidth
			default:
				break indent
			}
		}
		switch {
		case n == len(line):
			lines[i] = ""
		case width != n:
			lines[i] = strings.Repeat(" ", width) + line[n:]
		}
	}
	return strings.Join(lines, "\n")
}
