package csml

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var (
	ifRe     = regexp.MustCompile(`^if\s+(.+)$`)
	elseIfRe = regexp.MustCompile(`^else\s+if\s+(.+)$`)
	elseRe   = regexp.MustCompile(`^else\s*$`)
	forRe    = regexp.MustCompile(`^for\s+([A-Za-z_]\w*)(?:\s*,\s*([A-Za-z_]\w*))?\s+in\s+(.+)$`)
	letRe    = regexp.MustCompile(`^let\s+([A-Za-z_]\w*)\s*=\s*([^=].*)$`)
	assignRe = regexp.MustCompile(`^(?:let\s+)?([A-Za-z_]\w*)\s*=\s*([^=].*)$`)
)

// condState tracks an @if chain between sibling lines.
type condState int

const (
	condNone condState = iota // no chain
	condOpen                  // no branch taken yet
	condDone                  // a branch was taken
)

// interp walks the token stream and drives a Writer. A token owns the
// following tokens with a greater level as its body.
type interp struct {
	ctx  context.Context
	eval Evaluator
	w    *Writer
	src  string
}

// run executes a block. Bindings made by @let and @script lines are visible
// to the rest of the block and its nested blocks.
func (in *interp) run(tokens []Token, vars map[string]any) error {
	cond := condNone
	for i := 0; i < len(tokens); {
		t := tokens[i]
		j := i + 1
		for j < len(tokens) && tokens[j].Level > t.Level {
			j++
		}
		body := tokens[i+1 : j]
		i = j

		var err error
		switch t.Kind {
		case EOFToken:
			return nil
		case DoctypeToken:
			err = in.doctype(t, body, vars)
		case ScriptToken:
			in.w.Level(t.Level)
			err = in.script(t, vars)
		case StatementToken:
			in.w.Level(t.Level)
			cond, err = in.statement(t, t.Code, body, vars, cond)
			if err != nil {
				return err
			}
			continue
		case TextNodeToken:
			err = in.text(t, body, vars)
		case ElementToken:
			err = in.element(t, body, vars)
		}
		if err != nil {
			return err
		}
		cond = condNone
	}
	return nil
}

func (in *interp) doctype(t Token, body []Token, vars map[string]any) error {
	f, err := in.fragment(t.Doctype, vars, t.Span)
	if err != nil {
		return err
	}
	if err := in.w.Doctype(t.Level, f, t.Span); err != nil {
		return err
	}
	return in.run(body, maps.Clone(vars))
}

func (in *interp) text(t Token, body []Token, vars map[string]any) error {
	flags, err := in.flags(t.Flags, vars, t.Span)
	if err != nil {
		return err
	}
	var f Fragment
	if t.Text != nil {
		if f, err = in.fragment(*t.Text, vars, t.Span); err != nil {
			return err
		}
	}
	if err := in.w.Text(t.Level, flags, f, t.Span); err != nil {
		return err
	}
	return in.run(body, maps.Clone(vars))
}

func (in *interp) element(t Token, body []Token, vars map[string]any) error {
	chain := make([]Descriptor, len(t.Chain))
	for i, sel := range t.Chain {
		d, err := in.descriptor(sel, vars, t.Span)
		if err != nil {
			return err
		}
		chain[i] = d
	}
	var text *Fragment
	if t.Text != nil {
		f, err := in.fragment(*t.Text, vars, t.Span)
		if err != nil {
			return err
		}
		text = &f
	}
	if err := in.w.Open(t.Level, chain, text); err != nil {
		return err
	}
	vars = maps.Clone(vars)
	if t.Statement == "" {
		return in.run(body, vars)
	}
	_, err := in.statement(t, t.Statement, body, vars, condNone)
	return err
}

// statement executes @if, @else if, @else, @for and @let. It returns the
// state of the @if chain for the next sibling.
func (in *interp) statement(t Token, code string, body []Token, vars map[string]any, cond condState) (condState, error) {
	code = strings.TrimSpace(code)
	switch {
	case elseIfRe.MatchString(code), elseRe.MatchString(code):
		if cond == condNone {
			return condNone, in.syntaxError(t.Span, "else without if")
		}
		if cond == condDone {
			return condDone, nil
		}
		if m := elseIfRe.FindStringSubmatch(code); m != nil {
			return in.branch(t, m[1], body, vars)
		}
		return condDone, in.run(body, maps.Clone(vars))

	case ifRe.MatchString(code):
		return in.branch(t, ifRe.FindStringSubmatch(code)[1], body, vars)

	case forRe.MatchString(code):
		m := forRe.FindStringSubmatch(code)
		return condNone, in.loop(t, m[1], m[2], m[3], body, vars)

	case letRe.MatchString(code):
		m := letRe.FindStringSubmatch(code)
		v, err := in.value(m[2], vars, t.Span)
		if err != nil {
			return condNone, err
		}
		vars[m[1]] = v
		return condNone, in.run(body, maps.Clone(vars))
	}
	return condNone, in.syntaxError(t.Span, fmt.Sprintf("unknown statement %q", code))
}

func (in *interp) branch(t Token, code string, body []Token, vars map[string]any) (condState, error) {
	v, err := in.value(code, vars, t.Span)
	if err != nil {
		return condNone, err
	}
	if !isTruthy(v) {
		return condOpen, nil
	}
	return condDone, in.run(body, maps.Clone(vars))
}

// loop runs the body for every element of a slice or array, every entry of
// a map in key order, or every integer below n.
func (in *interp) loop(t Token, valName, keyName, code string, body []Token, vars map[string]any) error {
	res, err := in.value(code, vars, t.Span)
	if err != nil {
		return err
	}
	iter := func(k, v any) error {
		lv := maps.Clone(vars)
		lv[valName] = v
		if keyName != "" {
			lv[keyName] = k
		}
		return in.run(body, lv)
	}

	rv := reflect.ValueOf(res)
	if res == nil || !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := iter(i, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return stringify(keys[i].Interface()) < stringify(keys[j].Interface())
		})
		for _, k := range keys {
			if err := iter(k.Interface(), rv.MapIndex(k).Interface()); err != nil {
				return err
			}
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		for i := 0; i < int(rv.Int()); i++ {
			if err := iter(i, i); err != nil {
				return err
			}
		}
	default:
		return spanError(t.Span, fmt.Errorf("@for expression must return slice, array, map or int, got %T", res))
	}
	return nil
}

// script binds the name = expr lines of a @script block. Blank lines and
// lines starting with // are ignored.
func (in *interp) script(t Token, vars map[string]any) error {
	for _, line := range strings.Split(t.Code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		m := assignRe.FindStringSubmatch(line)
		if m == nil {
			return in.syntaxError(t.Span, fmt.Sprintf("invalid script line %q", line))
		}
		v, err := in.eval.Eval(in.ctx, m[2], vars)
		if err != nil {
			return spanError(t.Span, err)
		}
		vars[m[1]] = v
	}
	return nil
}

// value evaluates an expression that must be available right away.
func (in *interp) value(code string, vars map[string]any, span Span) (any, error) {
	v, err := in.eval.Eval(in.ctx, code, vars)
	if err != nil {
		return nil, spanError(span, err)
	}
	if _, ok := v.(Deferred); ok {
		return nil, spanError(span, fmt.Errorf("%q: deferred value in a statement", code))
	}
	return v, nil
}

func (in *interp) fragment(s Splice, vars map[string]any, span Span) (Fragment, error) {
	f := Fragment{Lits: s.Lits}
	if len(f.Lits) == 0 {
		f.Lits = []string{""}
	}
	for _, code := range s.Exprs {
		v, err := in.eval.Eval(in.ctx, code, vars)
		if err != nil {
			return Fragment{}, spanError(span, err)
		}
		f.Vals = append(f.Vals, v)
	}
	return f, nil
}

func (in *interp) optFragment(s *Splice, vars map[string]any, span Span) (*Fragment, error) {
	if s == nil {
		return nil, nil
	}
	f, err := in.fragment(*s, vars, span)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (in *interp) flags(uses []FlagUse, vars map[string]any, span Span) ([]FlagFragment, error) {
	var flags []FlagFragment
	for _, u := range uses {
		name, err := in.fragment(u.Name, vars, span)
		if err != nil {
			return nil, err
		}
		args, err := in.optFragment(u.Args, vars, span)
		if err != nil {
			return nil, err
		}
		flags = append(flags, FlagFragment{Name: name, Args: args})
	}
	return flags, nil
}

func (in *interp) descriptor(sel Selector, vars map[string]any, span Span) (Descriptor, error) {
	d := Descriptor{Span: span}
	var err error
	if d.TagName, err = in.fragment(sel.TagName, vars, span); err != nil {
		return d, err
	}
	if d.ID, err = in.optFragment(sel.ID, vars, span); err != nil {
		return d, err
	}
	for _, c := range sel.ClassNames {
		f, err := in.fragment(c, vars, span)
		if err != nil {
			return d, err
		}
		d.ClassNames = append(d.ClassNames, f)
	}
	for _, a := range sel.Attributes {
		name, err := in.fragment(a.Name, vars, span)
		if err != nil {
			return d, err
		}
		val, err := in.optFragment(a.Value, vars, span)
		if err != nil {
			return d, err
		}
		d.Attributes = append(d.Attributes, AttrFragment{Name: name, Value: val})
	}
	d.Flags, err = in.flags(sel.Flags, vars, span)
	return d, err
}

func (in *interp) syntaxError(span Span, msg string) error {
	return &SyntaxError{Msg: msg, Span: span, Line: lineAt(in.src, span.Offset)}
}
