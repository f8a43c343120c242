// internal/llmutil/parser_test.go
package llmutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Double bool `json:"double"`
}

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  point
	}{
		{"bare object", `{"x":10,"y":20,"double":true}`, point{10, 20, true}},
		{"json fence", "```json\n{\"x\":1,\"y\":2,\"double\":false}\n```", point{1, 2, false}},
		{"plain fence", "```\n{\"x\":3,\"y\":4}\n```", point{3, 4, false}},
		{"surrounding prose", "Sure! Here you go: {\"x\":5,\"y\":6,\"double\":true} Hope that helps.", point{5, 6, true}},
		{"whitespace", "  \n{\"x\":7,\"y\":8}\n  ", point{7, 8, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONResponse[point](tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseJSONResponse_Malformed(t *testing.T) {
	for _, input := range []string{"", "no json here", "{\"x\": \"ten\"}", "```json\n{broken\n```"} {
		_, err := ParseJSONResponse[point](input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrMalformedResponse), input)
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
	assert.Len(t, truncateString(strings.Repeat("x", 600), 500), 503)
}
