package csml

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// TransformFunc rewrites the text of a text node. Returning ErrSkip leaves
// the text unchanged; any other error aborts the render.
type TransformFunc func(text string, c *Context) (string, error)

// FlagOptions configure a flag.
type FlagOptions struct {
	// Invert runs the flag's transform unless the flag is in context.
	Invert bool

	// Preformatted makes lines carrying the flag capture indented block text.
	Preformatted bool

	// Before places the flag in the pipeline ahead of the named flag or
	// transform. The flag is appended if the name is not registered.
	Before string
}

type entry struct {
	name   string
	flag   bool
	invert bool
	fn     TransformFunc
}

// Registry holds flags and transforms in registration order, and the
// default flags of tags.
//
// A Registry must not be modified while documents are being parsed or
// rendered with it. Configure it first; any number of renders may then share
// it.
type Registry struct {
	entries      []entry
	preformatted map[string]bool
	tags         map[string][]Flag
}

// NewRegistry returns a registry seeded with the default flags, transforms
// and tag flags.
func NewRegistry() *Registry {
	r := &Registry{}
	r.ResetToDefaults()
	return r
}

// ResetToDefaults drops all configuration and registers the defaults again.
func (r *Registry) ResetToDefaults() {
	r.entries = nil
	r.preformatted = map[string]bool{}
	r.tags = map[string][]Flag{}
	registerDefaults(r)
}

// Clone returns a copy of the registry that can be modified independently.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		entries:      slices.Clone(r.entries),
		preformatted: maps.Clone(r.preformatted),
		tags:         make(map[string][]Flag, len(r.tags)),
	}
	for tag, flags := range r.tags {
		c.tags[tag] = slices.Clone(flags)
	}
	return c
}

// AddFlag registers a flag. The spec is the flag name, optionally written as
// ":name", without arguments. The transform runs for text nodes that have the flag in context
// (or, with opts.Invert, for those that don't).
func (r *Registry) AddFlag(spec string, fn TransformFunc, opts FlagOptions) error {
	f, err := parseFlagSpec(spec)
	if err == nil && strings.ContainsRune(spec, '(') {
		err = errors.New("arguments are not allowed")
	}
	if err != nil {
		return fmt.Errorf("%w: flag %q: %v", ErrInvalidName, spec, err)
	}
	if fn == nil {
		return fmt.Errorf("flag %q: nil transform", f.Name)
	}
	if r.exists(f.Name) {
		return fmt.Errorf("%w: %q", ErrNameConflict, f.Name)
	}
	e := entry{name: f.Name, flag: true, invert: opts.Invert, fn: fn}
	if i := slices.IndexFunc(r.entries, func(e entry) bool { return e.name == opts.Before }); opts.Before != "" && i >= 0 {
		r.entries = slices.Insert(r.entries, i, e)
	} else {
		r.entries = append(r.entries, e)
	}
	if opts.Preformatted {
		if r.preformatted == nil {
			r.preformatted = map[string]bool{}
		}
		r.preformatted[f.Name] = true
	}
	return nil
}

// RemoveFlag unregisters a flag. It does nothing if the flag is not registered.
func (r *Registry) RemoveFlag(spec string) {
	f, err := parseFlagSpec(spec)
	if err != nil {
		return
	}
	r.entries = slices.DeleteFunc(r.entries, func(e entry) bool {
		return e.flag && e.name == f.Name
	})
	delete(r.preformatted, f.Name)
}

// AddTransform registers a transform that runs for every text node.
func (r *Registry) AddTransform(name string, fn TransformFunc) error {
	if f, err := parseFlagSpec(name); err != nil || f.Name != name {
		return fmt.Errorf("%w: transform %q", ErrInvalidName, name)
	}
	if fn == nil {
		return fmt.Errorf("transform %q: nil transform", name)
	}
	if r.exists(name) {
		return fmt.Errorf("%w: %q", ErrNameConflict, name)
	}
	r.entries = append(r.entries, entry{name: name, fn: fn})
	return nil
}

// RemoveTransform unregisters a transform. It does nothing if the transform
// is not registered.
func (r *Registry) RemoveTransform(name string) {
	r.entries = slices.DeleteFunc(r.entries, func(e entry) bool {
		return !e.flag && e.name == name
	})
}

// AddFlagToTag makes the flag a default of every element with the tag name.
// The spec may carry arguments: ":indent(2)".
func (r *Registry) AddFlagToTag(tag, spec string) error {
	tag = strings.ToLower(tag)
	f, err := parseFlagSpec(spec)
	if err != nil {
		return fmt.Errorf("%w: flag %q: %v", ErrInvalidName, spec, err)
	}
	if r.tags == nil {
		r.tags = map[string][]Flag{}
	}
	flags := r.tags[tag]
	if i := slices.IndexFunc(flags, func(tf Flag) bool { return tf.Name == f.Name }); i >= 0 {
		flags[i] = f
	} else {
		r.tags[tag] = append(flags, f)
	}
	return nil
}

// RemoveFlagFromTag removes a default flag of the tag. Arguments in the spec
// are ignored.
func (r *Registry) RemoveFlagFromTag(tag, spec string) error {
	tag = strings.ToLower(tag)
	f, err := parseFlagSpec(spec)
	if err != nil {
		return fmt.Errorf("%w: flag %q: %v", ErrInvalidName, spec, err)
	}
	flags := slices.DeleteFunc(r.tags[tag], func(tf Flag) bool { return tf.Name == f.Name })
	if len(flags) == 0 {
		delete(r.tags, tag)
	} else {
		r.tags[tag] = flags
	}
	return nil
}

// TagFlags returns the default flags of the tag.
func (r *Registry) TagFlags(tag string) []Flag {
	tag = strings.ToLower(tag)
	return slices.Clone(r.tags[tag])
}

// tagFlag returns the arguments of a default flag of the tag.
func (r *Registry) tagFlag(tag, name string) (string, bool) {
	tag = strings.ToLower(tag)
	for _, f := range r.tags[tag] {
		if f.Name == name {
			return f.Args, true
		}
	}
	return "", false
}

// HasFlag reports whether a flag with the name is registered.
func (r *Registry) HasFlag(name string) bool {
	return slices.ContainsFunc(r.entries, func(e entry) bool { return e.flag && e.name == name })
}

// HasTransform reports whether a transform with the name is registered.
func (r *Registry) HasTransform(name string) bool {
	return slices.ContainsFunc(r.entries, func(e entry) bool { return !e.flag && e.name == name })
}

func (r *Registry) exists(name string) bool {
	return slices.ContainsFunc(r.entries, func(e entry) bool { return e.name == name })
}

// IsFlagPreformatted reports whether the flag captures block text.
func (r *Registry) IsFlagPreformatted(name string) bool {
	return r.preformatted[name]
}

// IsPreformatted reports whether a line with the tag name and explicit flags
// captures block text: the tag has a preformatted default flag, or one of
// the flags is preformatted.
func (r *Registry) IsPreformatted(tag string, flags []string) bool {
	for _, f := range r.tags[strings.ToLower(tag)] {
		if r.preformatted[f.Name] {
			return true
		}
	}
	return slices.ContainsFunc(flags, r.IsFlagPreformatted)
}

// Apply runs every flag and transform in registration order, each on the
// output of the previous one. Flags are gated by the context.
func (r *Registry) Apply(text string, c *Context) (string, error) {
	for _, e := range r.entries {
		if e.flag && c.hasFlag(e.name) == e.invert {
			continue
		}
		out, err := e.fn(text, c)
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", e.name, err)
		}
		text = out
	}
	return text, nil
}
