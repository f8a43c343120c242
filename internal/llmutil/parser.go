// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedResponse marks a model reply that could not be decoded into
// the expected shape. Callers treat it as a failed attempt.
var ErrMalformedResponse = errors.New("malformed model response")

// Backticks are written as \x60 because Go raw strings cannot contain them.
var (
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")
	fenceRegex      = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60$")
)

// StripCodeFences removes a surrounding markdown fence (``` or ```json).
// Unfenced input is returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRegex.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseJSONResponse decodes a model reply into T. It accepts bare JSON,
// fenced JSON and a JSON object embedded in conversational text.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	switch {
	case strings.HasPrefix(response, "```"):
		if m := jsonObjectRegex.FindStringSubmatch(response); len(m) > 1 {
			candidate = m[1]
		} else {
			candidate = StripCodeFences(response)
		}
	case !strings.HasPrefix(response, "{"):
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			candidate = response[first : last+1]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("%w: %v (extracted: %s)", ErrMalformedResponse, err, truncateString(candidate, 500))
	}
	return &result, nil
}

// truncateString cuts s to maxLen bytes for error messages.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
