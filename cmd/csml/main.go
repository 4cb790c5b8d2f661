// Command csml renders a csml document to HTML.
//
//	csml [flags] page.csml
//
// The output goes to stdout unless -out is given. Flags naming tag flags take
// a "tag:flag" value and may be repeated, as may -arg name=value.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpotapov/go-csml/csml"
	"github.com/dpotapov/go-csml/markdown"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			var se *csml.SyntaxError
			if errors.As(err, &se) && se.Line != "" {
				fmt.Fprintln(os.Stderr, se.Excerpt())
			}
		}
		os.Exit(1)
	}
}

type tagFlag struct{ tag, flag string }

func parseTagFlag(s string) (tagFlag, error) {
	tag, f, ok := strings.Cut(s, ":")
	if !ok || tag == "" || f == "" {
		return tagFlag{}, fmt.Errorf("expected tag:flag, got %q", s)
	}
	return tagFlag{tag, f}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		out             string
		debug           bool
		withMarkdown    bool
		addToTag        []tagFlag
		removeFromTag   []tagFlag
		removeFlags     []string
		removeTransform []string
		vars            = map[string]any{}
	)

	fs := flag.NewFlagSet("csml", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&out, "out", "", "Write the HTML to this file instead of stdout")
	fs.BoolVar(&debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&withMarkdown, "markdown", false, "Register the :markdown flag")
	fs.Func("add-flag-to-tag", "Add a default flag to a tag, as tag:flag (repeatable)", func(s string) error {
		tf, err := parseTagFlag(s)
		addToTag = append(addToTag, tf)
		return err
	})
	fs.Func("remove-flag-from-tag", "Remove a default flag from a tag, as tag:flag (repeatable)", func(s string) error {
		tf, err := parseTagFlag(s)
		removeFromTag = append(removeFromTag, tf)
		return err
	})
	fs.Func("remove-flag", "Unregister a flag (repeatable)", func(s string) error {
		removeFlags = append(removeFlags, s)
		return nil
	})
	fs.Func("remove-transform", "Unregister a transform (repeatable)", func(s string) error {
		removeTransform = append(removeTransform, s)
		return nil
	})
	fs.Func("arg", "Pass a variable to the document, as name=value or name for true (repeatable)", func(s string) error {
		name, value, ok := strings.Cut(s, "=")
		if name == "" {
			return fmt.Errorf("missing argument name in %q", s)
		}
		if ok {
			vars[name] = value
		} else {
			vars[name] = true
		}
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("you must specify one input file to process")
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	reg := csml.NewRegistry()
	if withMarkdown {
		if err := markdown.Register(reg); err != nil {
			return err
		}
	}
	for _, name := range removeTransform {
		reg.RemoveTransform(name)
	}
	for _, name := range removeFlags {
		reg.RemoveFlag(name)
	}
	for _, tf := range removeFromTag {
		if err := reg.RemoveFlagFromTag(tf.tag, tf.flag); err != nil {
			return err
		}
	}
	for _, tf := range addToTag {
		if err := reg.AddFlagToTag(tf.tag, tf.flag); err != nil {
			return err
		}
	}

	input, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	eng := &csml.Engine{Registry: reg, Logger: logger}
	html, err := eng.RenderFile(ctx, os.DirFS(filepath.Dir(input)), filepath.Base(input), vars)
	if err != nil {
		return err
	}

	if out == "" {
		_, err = io.WriteString(stdout, html)
		return err
	}
	if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
		return err
	}
	logger.Debug("Wrote output", slog.String("in", input), slog.String("out", out))
	return nil
}
