package csml

import (
	"regexp"
	"strings"
)

// symbol indexes the grammar table.
type symbol int

const (
	symIndentation symbol = iota
	symWhitespace
	symEOL
	symEOF
	symString
	symText
	symIdent
	symSimpleIdent
	symArguments
	symSimpleArguments
	symQuote
	symSingleQuoted
	symDoubleQuoted
	symUnquoted
	symLevel
	symBlockText
	symBlockString
	symDoctype
	symScript
	symStatement
	symID
	symClassName
	symAttribute
	symFlag
	symSimpleFlag
	symModifier
	symModifiers
	symElement
	symDescendant
	symTextNode
	symAny
	numSymbols
)

// rule is an entry of the grammar table: either a pattern read by the
// reader or a function composed of other rules.
type rule struct {
	name         string
	pattern      *regexp.Regexp
	interpolable bool
	fn           func(p *processor) (any, bool)
}

var grammar [numSymbols]rule

func init() {
	grammar = [numSymbols]rule{
		symIndentation:     {name: "indentation", pattern: regexp.MustCompile(`^\n+ *`)},
		symWhitespace:      {name: "whitespace", pattern: regexp.MustCompile(`^[ \t]+`)},
		symEOL:             {name: "end of line", fn: ruleEOL},
		symEOF:             {name: "end of input", pattern: regexp.MustCompile(`^$`)},
		symString:          {name: "string", pattern: regexp.MustCompile(`^.*`)},
		symText:            {name: "text", pattern: regexp.MustCompile(`^.*`), interpolable: true},
		symIdent:           {name: "identifier", pattern: regexp.MustCompile(`^[-\w\x{B7}\x{C0}-\x{EFFFF}]*`), interpolable: true},
		symSimpleIdent:     {name: "identifier", pattern: regexp.MustCompile(`^[-\w\x{7F}-\x{EFFFF}]+`)},
		symArguments:       {name: "arguments", pattern: regexp.MustCompile(`^[^)\n]*`), interpolable: true},
		symSimpleArguments: {name: "arguments", pattern: regexp.MustCompile(`^[^)]*`)},
		symQuote:           {name: "quote", fn: ruleQuote},
		symSingleQuoted:    {name: "single quoted string", pattern: regexp.MustCompile(`^(?:[^'\n\\]|\\.)*`), interpolable: true},
		symDoubleQuoted:    {name: "double quoted string", pattern: regexp.MustCompile(`^(?:[^"\n\\]|\\.)*`), interpolable: true},
		symUnquoted:        {name: "unquoted string", pattern: regexp.MustCompile("^[^ '\"`<>=\\]\n]*"), interpolable: true},
		symLevel:           {name: "level", fn: ruleLevel},
		symBlockText:       {name: "block text", fn: ruleBlockText},
		symBlockString:     {name: "block string", fn: ruleBlockString},
		symDoctype:         {name: "doctype", fn: ruleDoctype},
		symScript:          {name: "script", fn: ruleScript},
		symStatement:       {name: "statement", fn: ruleStatement},
		symID:              {name: "id", fn: ruleID},
		symClassName:       {name: "class name", fn: ruleClassName},
		symAttribute:       {name: "attribute", fn: ruleAttribute},
		symFlag:            {name: "flag", fn: ruleFlag},
		symSimpleFlag:      {name: "flag", fn: ruleSimpleFlag},
		symModifier:        {name: "modifier", fn: ruleModifier},
		symModifiers:       {name: "modifiers", fn: ruleModifiers},
		symElement:         {name: "element", fn: ruleElement},
		symDescendant:      {name: "descendant", fn: ruleDescendant},
		symTextNode:        {name: "text node", fn: ruleTextNode},
		symAny:             {name: "line", fn: ruleAny},
	}
}

var (
	firstIndentation = regexp.MustCompile(`^\n* *`)
	escapedChar      = regexp.MustCompile(`\\(.)`)
	modifierTerms    = []term{symID, symClassName, symAttribute, symFlag}
)

func ruleEOL(p *processor) (any, bool) {
	rest := p.r.rest()
	return "", rest == "" || rest[0] == '\n'
}

// ruleQuote matches an opening quote, or nothing when an unquoted value follows.
func ruleQuote(p *processor) (any, bool) {
	rest := p.r.rest()
	switch {
	case rest == "":
		return nil, false
	case rest[0] == '\'' || rest[0] == '"':
		p.r.pos++
		return rest[:1], true
	case strings.IndexByte(" '\"`<>=]\n", rest[0]) >= 0:
		return nil, false
	}
	return "", true
}

// ruleLevel reads the indentation of the next line and makes it current.
func ruleLevel(p *processor) (any, bool) {
	var s string
	if p.r.pos == 0 {
		s, _ = p.r.readRegexp(firstIndentation)
	} else if p.check(symIndentation) {
		s = p.get().(string)
	} else {
		return nil, false
	}
	p.level = len(s) - strings.LastIndexByte(s, '\n') - 1
	return p.level, true
}

// blockIndentation consumes line breaks followed by a line indented deeper
// than the current level. It returns the line breaks and the indentation in
// excess of the level.
func (p *processor) blockIndentation() (string, bool) {
	rest := p.r.rest()
	nl := 0
	for nl < len(rest) && rest[nl] == '\n' {
		nl++
	}
	if nl == 0 {
		return "", false
	}
	sp := 0
	for nl+sp < len(rest) && rest[nl+sp] == ' ' {
		sp++
	}
	if sp <= p.level {
		return "", false
	}
	p.r.pos += nl + sp
	return rest[:nl] + rest[nl+p.level:nl+sp], true
}

func ruleBlockText(p *processor) (any, bool) {
	var s Splice
	for {
		if p.check(symText) {
			s.concat(p.get().(Splice))
		}
		ind, ok := p.blockIndentation()
		if !ok {
			break
		}
		s.addString(ind)
	}
	if s.IsEmpty() {
		return nil, false
	}
	return s, true
}

func ruleBlockString(p *processor) (any, bool) {
	var b strings.Builder
	for {
		if p.check(symString) {
			b.WriteString(p.get().(string))
		}
		ind, ok := p.blockIndentation()
		if !ok {
			break
		}
		b.WriteString(ind)
	}
	if b.Len() == 0 {
		return nil, false
	}
	return b.String(), true
}

func ruleDoctype(p *processor) (any, bool) {
	if !p.check(lit("!DOCTYPE"), lit("!doctype")) {
		return nil, false
	}
	return p.expect(symWhitespace).expect(symText).get(), true
}

func ruleScript(p *processor) (any, bool) {
	if !p.check(lit("@script")) {
		return nil, false
	}
	p.try(symWhitespace)
	if !p.check(symEOL) {
		return nil, false
	}
	p.try(symBlockString)
	code, _ := p.get().(string)
	return code, true
}

func ruleStatement(p *processor) (any, bool) {
	if !p.check(lit("@")) {
		return nil, false
	}
	return p.expect(symString).get(), true
}

func ruleID(p *processor) (any, bool) {
	if !p.check(lit("#")) {
		return nil, false
	}
	return p.expect(symIdent).get(), true
}

func ruleClassName(p *processor) (any, bool) {
	if !p.check(lit(".")) {
		return nil, false
	}
	return p.expect(symIdent).get(), true
}

func ruleAttribute(p *processor) (any, bool) {
	if !p.check(lit("[")) {
		return nil, false
	}
	p.open()
	p.try(symWhitespace)
	p.expect(symIdent).as(fName)
	p.try(symWhitespace)
	if p.expect(lit("="), lit("]")).matched() == lit("]") {
		return attrUse(p.close()), true
	}
	p.try(symWhitespace)
	quote := p.expect(symQuote).get().(string)
	if quote != "" && p.check(lit(quote)) {
		p.write(Lit("")).as(fValue)
		p.try(symWhitespace).expect(lit("]"))
		return attrUse(p.close()), true
	}
	switch quote {
	case "'":
		p.expect(symSingleQuoted)
	case "":
		p.expect(symUnquoted)
	default:
		p.expect(symDoubleQuoted)
	}
	v := p.get().(Splice)
	if quote != "" {
		v = v.mapLits(func(s string) string {
			return escapedChar.ReplaceAllString(s, "$1")
		})
		p.write(v).as(fValue)
		p.expect(lit(quote))
	} else {
		p.write(v).as(fValue)
	}
	p.try(symWhitespace)
	p.expect(lit("]"))
	return attrUse(p.close()), true
}

func ruleFlag(p *processor) (any, bool) {
	if !p.check(lit(":")) {
		return nil, false
	}
	p.open()
	p.expect(symIdent).as(fName)
	if p.check(lit("(")) {
		p.try(symArguments).as(fArgs)
		p.expect(lit(")"))
	}
	f := p.close()
	fu := FlagUse{Name: f[fName].(Splice)}
	if args, ok := f[fArgs].(Splice); ok {
		fu.Args = &args
	}
	return fu, true
}

// ruleSimpleFlag parses a flag given outside of markup, with no interpolation.
// Arguments are only allowed in the ":name(args)" form.
func ruleSimpleFlag(p *processor) (any, bool) {
	complete := p.check(lit(":"))
	p.open()
	p.expect(symSimpleIdent).as(fName)
	if !complete {
		p.expect(symEOF)
	} else if p.expect(lit("("), symEOF).matched() == lit("(") {
		p.try(symSimpleArguments).as(fArgs)
		p.expect(lit(")"))
		p.expect(symEOF)
	}
	f := p.close()
	args, _ := f[fArgs].(string)
	return Flag{Name: f[fName].(string), Args: args}, true
}

// ruleModifier matches one modifier, possibly on a continuation line that is
// indented like the current line and starts with "&".
func ruleModifier(p *processor) (any, bool) {
	p.open()
	if p.try(modifierTerms...).as(fValue).matched() != nil {
		p.write(p.matched()).as(fType)
		return p.close(), true
	}
	if !p.check(symEOL) {
		p.abort()
		return nil, false
	}
	if !p.check(lit("\n" + strings.Repeat(" ", p.level) + "&")) {
		p.abort()
		return nil, false
	}
	p.try(symWhitespace)
	p.expect(modifierTerms...).as(fValue)
	p.write(p.matched()).as(fType)
	return p.close(), true
}

func ruleModifiers(p *processor) (any, bool) {
	p.open()
	for p.check(symModifier) {
		m := p.get().(frame)
		p.write(m[fValue])
		switch m[fType] {
		case symID:
			p.as(fID)
		case symClassName:
			p.into(fClassNames)
		case symAttribute:
			p.into(fAttributes)
		case symFlag:
			p.into(fFlags)
		}
	}
	f := p.close()
	if len(f) == 0 {
		return nil, false
	}
	return f, true
}

func ruleElement(p *processor) (any, bool) {
	if !p.check(symIdent) {
		return nil, false
	}
	p.open()
	p.as(fTagName)
	for p.try(symModifiers).matched() != nil {
		p.merge()
	}
	top := p.peek()
	flags, _ := top[fFlags].([]any)
	textType := symText
	if p.preformatted(top[fTagName].(Splice), flags) {
		textType = symBlockText
	}
	p.try(symWhitespace)
	switch p.expect(symDescendant, symStatement, textType, symEOL).matched() {
	case symDescendant:
		p.as(fDescendant)
	case symStatement:
		p.as(fStatement)
	case textType:
		p.as(fText)
	}
	return p.close(), true
}

func ruleDescendant(p *processor) (any, bool) {
	if !p.check(lit(">")) {
		return nil, false
	}
	p.try(symWhitespace)
	return p.expect(symElement).get(), true
}

func ruleTextNode(p *processor) (any, bool) {
	if !p.check(symFlag) {
		return nil, false
	}
	p.open()
	p.into(fFlags)
	for p.try(symFlag).into(fFlags).matched() != nil {
	}
	p.try(symWhitespace)
	flags, _ := p.peek()[fFlags].([]any)
	textType := symText
	if p.preformatted(Splice{}, flags) {
		textType = symBlockText
	}
	if p.expect(textType, symEOL).matched() == textType {
		p.as(fText)
	}
	return p.close(), true
}

func ruleAny(p *processor) (any, bool) {
	p.try(symLevel)
	if p.check(symEOF) {
		return nil, false
	}
	start := p.r.pos
	p.open()
	kind := p.expect(symDoctype, symScript, symStatement, symTextNode, symElement).matched()
	p.as(fContent)
	p.write(p.level).as(fLevel)
	f := p.close()

	t := Token{
		Level: f[fLevel].(int),
		Span:  spanAt(p.r.src, start, p.r.pos-start),
	}
	switch kind {
	case symDoctype:
		t.Kind = DoctypeToken
		t.Doctype = f[fContent].(Splice)
	case symScript:
		t.Kind = ScriptToken
		t.Code = f[fContent].(string)
	case symStatement:
		t.Kind = StatementToken
		t.Code = f[fContent].(string)
	case symTextNode:
		t.Kind = TextNodeToken
		nf := f[fContent].(frame)
		t.Flags = flagUses(nf[fFlags])
		t.Text = optSplice(nf[fText])
	case symElement:
		t.Kind = ElementToken
		for ef := f[fContent].(frame); ef != nil; {
			t.Chain = append(t.Chain, selectorOf(ef))
			next, ok := ef[fDescendant].(frame)
			if !ok {
				t.Statement, _ = ef[fStatement].(string)
				t.Text = optSplice(ef[fText])
				break
			}
			ef = next
		}
	}
	return t, true
}

func selectorOf(f frame) Selector {
	s := Selector{
		TagName: f[fTagName].(Splice),
		ID:      optSplice(f[fID]),
		Flags:   flagUses(f[fFlags]),
	}
	l, _ := f[fClassNames].([]any)
	for _, v := range l {
		s.ClassNames = append(s.ClassNames, v.(Splice))
	}
	l, _ = f[fAttributes].([]any)
	for _, v := range l {
		s.Attributes = append(s.Attributes, v.(AttrUse))
	}
	return s
}

func attrUse(f frame) AttrUse {
	return AttrUse{Name: f[fName].(Splice), Value: optSplice(f[fValue])}
}

func flagUses(v any) []FlagUse {
	l, _ := v.([]any)
	var flags []FlagUse
	for _, f := range l {
		flags = append(flags, f.(FlagUse))
	}
	return flags
}

func optSplice(v any) *Splice {
	s, ok := v.(Splice)
	if !ok {
		return nil
	}
	return &s
}
