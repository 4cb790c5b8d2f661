package csml

import "math"

// TokenKind identifies the kind of a Token.
type TokenKind int

const (
	DoctypeToken TokenKind = iota
	ScriptToken
	StatementToken
	TextNodeToken
	ElementToken

	// EOFToken terminates the token stream. Its level is EOFLevel.
	EOFToken
)

// EOFLevel is the level of the terminating EOFToken. It is higher than the
// level of any line.
const EOFLevel = math.MaxInt

var tokenKindNames = [...]string{
	DoctypeToken:   "doctype",
	ScriptToken:    "script",
	StatementToken: "statement",
	TextNodeToken:  "text node",
	ElementToken:   "element",
	EOFToken:       "EOF",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return "unknown"
}

// Token is a single markup line (plus the block text it captured).
type Token struct {
	Kind  TokenKind
	Level int
	Span  Span

	// Doctype is the content of a DoctypeToken.
	Doctype Splice

	// Code is the raw body of a ScriptToken or the code of a StatementToken.
	Code string

	// Flags are the flags of a TextNodeToken.
	Flags []FlagUse

	// Chain is the descendant chain of an ElementToken, outermost first.
	Chain []Selector

	// Statement is the trailing @statement of an ElementToken, if any.
	Statement string

	// Text is the text of a TextNodeToken or an ElementToken, if any.
	Text *Splice
}

// Selector describes one element of a descendant chain.
type Selector struct {
	TagName    Splice
	ID         *Splice
	ClassNames []Splice
	Attributes []AttrUse
	Flags      []FlagUse
}

// FlagUse is a flag as written in markup: :name or :name(args).
type FlagUse struct {
	Name Splice
	Args *Splice
}

// AttrUse is an attribute as written in markup: [name] or [name=value].
type AttrUse struct {
	Name  Splice
	Value *Splice
}
