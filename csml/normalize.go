package csml

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"

	"golang.org/x/net/html/atom"
)

var (
	tagNameRe         = regexp.MustCompile(`(?i)^[a-z][-\w\x{B7}\x{C0}-\x{EFFFF}]*$`)
	invalidAttrNameRe = regexp.MustCompile(`[\s'">/=\x00-\x20\x7F]`)
)

// attrList is an ordered attribute set.
type attrList []Attribute

func (l attrList) get(key string) (string, bool) {
	for _, a := range l {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (l *attrList) set(key, val string) {
	for i := range *l {
		if (*l)[i].Key == key {
			(*l)[i].Val = val
			return
		}
	}
	*l = append(*l, Attribute{Key: key, Val: val})
}

func (l *attrList) del(key string) {
	*l = slices.DeleteFunc(*l, func(a Attribute) bool { return a.Key == key })
}

// normalizeElement fills an element node from its evaluated descriptor.
// Explicit attributes come first in the order written, a map value in place
// of an attribute name spreads into attributes, and a nil value removes the
// attribute. A shorthand #id replaces an explicit id. Shorthand classes are
// appended to an explicit class.
func (w *Writer) normalizeElement(n *Node, d *Descriptor) error {
	tag := d.TagName.String()
	if !tagNameRe.MatchString(tag) {
		return fmt.Errorf("%w: tag %q", ErrInvalidName, tag)
	}
	n.Data = tag
	n.DataAtom = atom.Lookup([]byte(strings.ToLower(tag)))

	if err := w.normalizeFlags(n, d.Flags); err != nil {
		return err
	}

	var attrs attrList
	for _, a := range d.Attributes {
		if v, ok := a.Name.Value(); ok {
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map {
				if a.Value == nil {
					spreadAttrs(&attrs, rv)
				}
				continue
			}
			if v == nil {
				continue
			}
		}
		key := a.Name.String()
		if a.Value == nil {
			attrs.set(key, "")
			continue
		}
		if v, ok := a.Value.Value(); ok && v == nil {
			attrs.del(key)
			continue
		}
		attrs.set(key, a.Value.String())
	}

	if d.ID != nil {
		if id := d.ID.String(); id != "" {
			attrs.set("id", id)
		} else {
			attrs.del("id")
		}
	}

	var classes []string
	if c, ok := attrs.get("class"); ok {
		classes = strings.Fields(c)
	}
	for _, c := range d.ClassNames {
		classes = append(classes, c.classes()...)
	}
	if len(classes) > 0 {
		attrs.set("class", strings.Join(classes, " "))
	} else {
		attrs.del("class")
	}

	for _, a := range attrs {
		if a.Key == "" || invalidAttrNameRe.MatchString(a.Key) {
			return fmt.Errorf("%w: attribute %q", ErrInvalidName, a.Key)
		}
	}
	n.Attr = attrs
	return nil
}

func spreadAttrs(attrs *attrList, m reflect.Value) {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return stringify(keys[i].Interface()) < stringify(keys[j].Interface())
	})
	for _, k := range keys {
		key, val := stringify(k.Interface()), m.MapIndex(k).Interface()
		if val == nil {
			attrs.del(key)
		} else {
			attrs.set(key, stringify(val))
		}
	}
}

// normalizeFlags records the flags of a node. Every flag must be registered.
func (w *Writer) normalizeFlags(n *Node, flags []FlagFragment) error {
	for _, f := range flags {
		name := f.Name.String()
		if !w.reg.HasFlag(name) {
			return fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
		if len(f.Name.Vals) > 0 && w.reg.IsFlagPreformatted(name) {
			w.logger.Warn("Interpolated preformatted flag has no effect on parsing",
				"flag", name, "line", n.Span.Line)
		}
		var args string
		if f.Args != nil {
			args = f.Args.String()
		}
		if i := slices.IndexFunc(n.Flags, func(nf Flag) bool { return nf.Name == name }); i >= 0 {
			n.Flags[i].Args = args
		} else {
			n.Flags = append(n.Flags, Flag{Name: name, Args: args})
		}
	}
	return nil
}
