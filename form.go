package pages

import (
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DecodeForm turns url.Values into nested maps and slices. Keys use dots for
// objects ("project.id"), an index for list items ("apps[0].name") and empty
// brackets to collect every value of a key ("tags[]"). Otherwise only the
// first value of a key is kept. Keys that conflict with an earlier shape are
// skipped and logged.
func DecodeForm(values url.Values, logger *slog.Logger) map[string]any {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := map[string]any{}
	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		var value any = vals[0]
		if name, ok := strings.CutSuffix(key, "[]"); ok {
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			key, value = name, list
		}
		if err := setPath(out, strings.Split(key, "."), value); err != nil && logger != nil {
			logger.Warn("Decode form value", slog.String("key", key), slog.Any("error", err))
		}
	}
	return out
}

// setPath stores value under the key parts, creating containers on the way.
func setPath(m map[string]any, parts []string, value any) error {
	name, index, isItem := splitIndex(parts[0])
	last := len(parts) == 1

	if !isItem {
		if last {
			m[name] = value
			return nil
		}
		child, err := childMap(m[name], name)
		if err != nil {
			return err
		}
		m[name] = child
		return setPath(child, parts[1:], value)
	}

	list, ok := m[name].([]any)
	if m[name] != nil && !ok {
		return fmt.Errorf("%s is a %T, not a list", name, m[name])
	}
	if index >= len(list) {
		list = append(list, make([]any, index+1-len(list))...)
	}
	m[name] = list
	if last {
		list[index] = value
		return nil
	}
	child, err := childMap(list[index], fmt.Sprintf("%s[%d]", name, index))
	if err != nil {
		return err
	}
	list[index] = child
	return setPath(child, parts[1:], value)
}

func childMap(v any, name string) (map[string]any, error) {
	switch v := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("%s is a %T, not an object", name, v)
	}
}

// splitIndex splits "name[3]" into name and 3. Anything that is not a
// non-negative index in trailing brackets is a plain name.
func splitIndex(part string) (string, int, bool) {
	open := strings.IndexByte(part, '[')
	if open <= 0 || !strings.HasSuffix(part, "]") {
		return part, 0, false
	}
	i, err := strconv.Atoi(part[open+1 : len(part)-1])
	if err != nil || i < 0 {
		return part, 0, false
	}
	return part[:open], i, true
}
