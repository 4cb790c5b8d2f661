package csml

import "strings"

// nilExpr replaces the code of an empty {{ }} placeholder.
const nilExpr = "nil"

// Splice is a piece of markup text with {{ }} placeholders. Lits always holds
// one more element than Exprs: Lits[0] Exprs[0] Lits[1] ... Exprs[n-1] Lits[n].
type Splice struct {
	Lits  []string
	Exprs []string
}

// Lit returns a Splice without placeholders.
func Lit(s string) Splice {
	return Splice{Lits: []string{s}}
}

// IsLiteral reports whether the splice has no placeholders.
func (s Splice) IsLiteral() bool {
	return len(s.Exprs) == 0
}

// IsEmpty reports whether the splice is an empty literal.
func (s Splice) IsEmpty() bool {
	return s.IsLiteral() && (len(s.Lits) == 0 || s.Lits[0] == "")
}

// Literal returns the text of a literal splice.
func (s Splice) Literal() (string, bool) {
	if !s.IsLiteral() {
		return "", false
	}
	if len(s.Lits) == 0 {
		return "", true
	}
	return s.Lits[0], true
}

// String returns the splice as it would be written in markup.
func (s Splice) String() string {
	var b strings.Builder
	for i, lit := range s.Lits {
		b.WriteString(lit)
		if i < len(s.Exprs) {
			b.WriteString("{{")
			b.WriteString(s.Exprs[i])
			b.WriteString("}}")
		}
	}
	return b.String()
}

func (s *Splice) addString(str string) {
	if len(s.Lits) == 0 {
		s.Lits = []string{""}
	}
	s.Lits[len(s.Lits)-1] += str
}

func (s *Splice) addExpr(code string) {
	if len(s.Lits) == 0 {
		s.Lits = []string{""}
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = nilExpr
	}
	s.Exprs = append(s.Exprs, code)
	s.Lits = append(s.Lits, "")
}

func (s *Splice) concat(o Splice) {
	if len(o.Lits) == 0 {
		return
	}
	s.addString(o.Lits[0])
	s.Exprs = append(s.Exprs, o.Exprs...)
	s.Lits = append(s.Lits, o.Lits[1:]...)
}

// mapLits applies fn to every literal segment.
func (s Splice) mapLits(fn func(string) string) Splice {
	lits := make([]string, len(s.Lits))
	for i, lit := range s.Lits {
		lits[i] = fn(lit)
	}
	return Splice{Lits: lits, Exprs: s.Exprs}
}
