package csml

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Deferred is a value that is not available yet. The writer awaits deferred
// values when the document is finalized.
type Deferred interface {
	Await(ctx context.Context) (any, error)
}

// DeferredFunc adapts a function to the Deferred interface.
type DeferredFunc func(ctx context.Context) (any, error)

func (f DeferredFunc) Await(ctx context.Context) (any, error) {
	return f(ctx)
}

// Fragment is a Splice with its placeholders evaluated.
type Fragment struct {
	Lits []string
	Vals []any
}

// StringFragment returns a fragment without values.
func StringFragment(s string) Fragment {
	return Fragment{Lits: []string{s}}
}

// ValueFragment returns a fragment consisting of a single value.
func ValueFragment(v any) Fragment {
	return Fragment{Lits: []string{"", ""}, Vals: []any{v}}
}

// Pending reports whether a value of the fragment is deferred.
func (f Fragment) Pending() bool {
	for _, v := range f.Vals {
		if _, ok := v.(Deferred); ok {
			return true
		}
	}
	return false
}

// resolve awaits the deferred values of the fragment.
func (f Fragment) resolve(ctx context.Context) (Fragment, error) {
	if !f.Pending() {
		return f, nil
	}
	vals := make([]any, len(f.Vals))
	for i, v := range f.Vals {
		for {
			d, ok := v.(Deferred)
			if !ok {
				break
			}
			var err error
			if v, err = d.Await(ctx); err != nil {
				return Fragment{}, err
			}
		}
		vals[i] = v
	}
	return Fragment{Lits: f.Lits, Vals: vals}, nil
}

// Value returns the value of a fragment consisting of a single value only.
func (f Fragment) Value() (any, bool) {
	if len(f.Vals) != 1 || f.Lits[0] != "" || f.Lits[1] != "" {
		return nil, false
	}
	return f.Vals[0], true
}

// String joins literals and values.
func (f Fragment) String() string {
	if len(f.Vals) == 0 {
		if len(f.Lits) == 0 {
			return ""
		}
		return f.Lits[0]
	}
	var b strings.Builder
	for i, lit := range f.Lits {
		b.WriteString(lit)
		if i < len(f.Vals) {
			b.WriteString(stringify(f.Vals[i]))
		}
	}
	return b.String()
}

// classes returns the class names of the fragment. A single slice value
// yields its elements and a single map value yields its keys with truthy
// values, in sorted order.
func (f Fragment) classes() []string {
	v, ok := f.Value()
	if !ok {
		return strings.Fields(f.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var names []string
		for i := 0; i < rv.Len(); i++ {
			names = append(names, strings.Fields(stringify(rv.Index(i).Interface()))...)
		}
		return names
	case reflect.Map:
		var names []string
		iter := rv.MapRange()
		for iter.Next() {
			if isTruthy(iter.Value().Interface()) {
				names = append(names, stringify(iter.Key().Interface()))
			}
		}
		sort.Strings(names)
		return names
	}
	return strings.Fields(stringify(v))
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(v)
}

// isTruthy reports whether a value counts as true in conditions.
func isTruthy(res any) bool {
	switch v := res.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	rv := reflect.ValueOf(res)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
