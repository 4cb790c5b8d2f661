package pages

import (
	"bytes"
	"log/slog"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDecodeForm(t *testing.T) {
	tests := []struct {
		name  string
		input url.Values
		want  map[string]any
	}{
		{
			name:  "plain keys",
			input: url.Values{"name": {"John Doe"}, "age": {"30"}},
			want:  map[string]any{"name": "John Doe", "age": "30"},
		},
		{
			name:  "first value wins",
			input: url.Values{"key": {"value1", "value2"}, "empty": {""}},
			want:  map[string]any{"key": "value1", "empty": ""},
		},
		{
			name:  "objects",
			input: url.Values{"project.id": {"123"}, "project.name": {"Tesla"}},
			want:  map[string]any{"project": map[string]any{"id": "123", "name": "Tesla"}},
		},
		{
			name:  "list items",
			input: url.Values{"items[1]": {"B"}, "items[0]": {"A"}, "items[3]": {"D"}},
			want:  map[string]any{"items": []any{"A", "B", nil, "D"}},
		},
		{
			name:  "collected values",
			input: url.Values{"tags[]": {"a", "b"}, "post.tags[]": {"c"}},
			want: map[string]any{
				"tags": []any{"a", "b"},
				"post": map[string]any{"tags": []any{"c"}},
			},
		},
		{
			name: "nested lists of objects",
			input: url.Values{
				"config.server[0].host":     {"localhost"},
				"config.server[0].ports[0]": {"8080"},
				"config.server[0].ports[1]": {"8081"},
				"config.database.url":       {"postgres://db"},
			},
			want: map[string]any{
				"config": map[string]any{
					"server": []any{
						map[string]any{"host": "localhost", "ports": []any{"8080", "8081"}},
					},
					"database": map[string]any{"url": "postgres://db"},
				},
			},
		},
		{
			name:  "malformed index is a plain name",
			input: url.Values{"key[abc]": {"x"}, "key[1a]": {"y"}, "[0]": {"z"}, "key[-1]": {"w"}},
			want:  map[string]any{"key[abc]": "x", "key[1a]": "y", "[0]": "z", "key[-1]": "w"},
		},
		{
			name:  "conflicting shapes keep the first",
			input: url.Values{"key": {"initial"}, "key.nested": {"x"}, "list[0]": {"a"}, "list.x": {"b"}},
			want:  map[string]any{"key": "initial", "list": map[string]any{"x": "b"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeForm(tt.input, nil)
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("diff (-got +want):\n%s", diff)
			}
		})
	}
}

func TestDecodeFormLogsConflicts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	DecodeForm(url.Values{"a": {"1"}, "a.b": {"2"}}, logger)
	require.Contains(t, buf.String(), "Decode form value")
	require.Contains(t, buf.String(), "a is a string, not an object")
}
