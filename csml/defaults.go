package csml

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	emphasisRe   = regexp.MustCompile(`__(.+?)__`)
	strongRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	codeRe       = regexp.MustCompile("``(.+?)``")
	linkRe       = regexp.MustCompile(`\[(.*?)\]\(((?:https?://|\.|/).+?)\)`)
	entityRe     = regexp.MustCompile(`^(?:[a-zA-Z]+|#[xX]?[0-9a-fA-F]+);`)
)

// maxTabSize is the largest tab size accepted by the indent flag.
const maxTabSize = 10

func registerDefaults(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(r.AddFlag("html", htmlFlag, FlagOptions{Invert: true}))
	must(r.AddFlag("preformatted", skip, FlagOptions{Preformatted: true}))
	must(r.AddFlag("indent", indentFlag, FlagOptions{Preformatted: true}))
	must(r.AddFlag("text-only", textOnlyFlag, FlagOptions{Preformatted: true}))

	must(r.AddTransform("emphasis", replacer(emphasisRe, "<em>${1}</em>")))
	must(r.AddTransform("strong", replacer(strongRe, "<strong>${1}</strong>")))
	must(r.AddTransform("code", replacer(codeRe, "<code>${1}</code>")))
	must(r.AddTransform("link", linkTransform))

	must(r.AddFlagToTag("title", ":text-only"))
	must(r.AddFlagToTag("script", ":indent(0)"))
	must(r.AddFlagToTag("script", ":html"))
	must(r.AddFlagToTag("style", ":indent(0)"))
	must(r.AddFlagToTag("style", ":html"))
	must(r.AddFlagToTag("textarea", ":indent(0)"))
}

func skip(string, *Context) (string, error) {
	return "", ErrSkip
}

func replacer(re *regexp.Regexp, repl string) TransformFunc {
	return func(text string, _ *Context) (string, error) {
		return re.ReplaceAllString(text, repl), nil
	}
}

// EscapeHTML escapes &, < and >. Ampersands that already start a character
// reference are kept, so escaping twice is the same as escaping once.
func EscapeHTML(s string) string {
	if !strings.ContainsAny(s, "&<>") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if entityRe.MatchString(s[i+1:]) {
				b.WriteByte('&')
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func escapeAmpersands(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !entityRe.MatchString(s[i+1:]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func htmlFlag(text string, _ *Context) (string, error) {
	return EscapeHTML(text), nil
}

func textOnlyFlag(text string, _ *Context) (string, error) {
	return whitespaceRe.ReplaceAllString(text, " "), nil
}

// indentFlag handles :indent(amount[,tabSize]). It dedents the block, indents
// every line by amount spaces and, with a tab size, turns leading runs of
// tabSize spaces into tabs.
func indentFlag(text string, c *Context) (string, error) {
	args, ok := c.Flag("indent")
	if !ok || strings.TrimSpace(args) == "" {
		return "", ErrSkip
	}
	tabSize := 0
	parts := strings.Split(args, ",")
	if len(parts) > 2 {
		return "", fmt.Errorf("too many arguments %q", args)
	}
	amount, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q", parts[0])
	}
	if amount < 0 {
		return "", fmt.Errorf("%w: amount %d", ErrRange, amount)
	}
	if len(parts) == 2 {
		tabSize, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return "", fmt.Errorf("invalid tab size %q", parts[1])
		}
		if tabSize < 0 || tabSize > maxTabSize {
			return "", fmt.Errorf("%w: tab size %d must be between 0 and %d", ErrRange, tabSize, maxTabSize)
		}
	}

	lines := strings.Split(Dedent(text), "\n")
	pad := strings.Repeat(" ", amount)
	for i, line := range lines {
		if line == "" {
			continue
		}
		line = pad + line
		if tabSize > 0 {
			n := len(line) - len(strings.TrimLeft(line, " "))
			line = strings.Repeat("\t", n/tabSize) + line[n-n%tabSize:]
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n"), nil
}

// Dedent drops a leading empty line and removes the indentation common to
// all non-blank lines.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 1 && lines[0] == "" {
		lines = lines[1:]
	}
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if common < 0 || n < common {
			common = n
		}
	}
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			lines[i] = ""
		case common > 0:
			lines[i] = line[common:]
		}
	}
	return strings.Join(lines, "\n")
}

func linkTransform(text string, _ *Context) (string, error) {
	return linkRe.ReplaceAllStringFunc(text, func(m string) string {
		sm := linkRe.FindStringSubmatch(m)
		content, url := sm[1], escapeAmpersands(sm[2])
		if strings.ContainsAny(url, " ='\"`<>") {
			url = `"` + strings.ReplaceAll(url, `"`, "&quot;") + `"`
		}
		return "<a href=" + url + ">" + content + "</a>"
	}), nil
}
