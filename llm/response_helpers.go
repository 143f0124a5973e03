package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoJSON is returned when neither the strict nor the recovery pass finds a JSON payload.
	ErrNoJSON = errors.New("no json payload in response")
	// ErrInvalidLabel is returned when a response does not decode to an acceptable label.
	ErrInvalidLabel = errors.New("response is not a valid label")
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedAnyPattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
)

// ExtractJSON decodes a JSON payload from model output in two stages:
// the trimmed content must be valid JSON, otherwise the first ```json fenced
// block is tried, then the first fenced block of any language. Anything else
// yields ErrNoJSON and a nil payload.
func ExtractJSON(content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}
	for _, pattern := range []*regexp.Regexp{fencedJSONPattern, fencedAnyPattern} {
		if m := pattern.FindStringSubmatch(content); m != nil {
			inner := strings.TrimSpace(m[1])
			if inner != "" && json.Valid([]byte(inner)) {
				return json.RawMessage(inner), nil
			}
		}
	}
	return nil, ErrNoJSON
}

// ParseLabel turns a classification response into a label.
//
// The strict pass accepts a bare token, a JSON string or number, or a JSON
// object carrying "label", "category" or "class". The recovery pass takes the
// payload ExtractJSON finds in a code fence and retries. When allowed is
// non-empty the label must be one of its members.
func ParseLabel(content string, allowed []string) (string, error) {
	if label, ok := strictLabel(content); ok {
		return checkAllowed(label, allowed)
	}
	if raw, err := ExtractJSON(content); err == nil {
		if label, ok := strictLabel(string(raw)); ok {
			return checkAllowed(label, allowed)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLabel, truncate(content, 64))
}

func strictLabel(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", false
	}

	var raw any
	if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
		switch v := raw.(type) {
		case string:
			return nonEmpty(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case map[string]any:
			for _, key := range []string{"label", "category", "class"} {
				switch lv := v[key].(type) {
				case string:
					return nonEmpty(lv)
				case float64:
					return strconv.FormatFloat(lv, 'f', -1, 64), true
				}
			}
			return "", false
		default:
			return "", false
		}
	}

	// A bare token: one line without fences or whitespace inside.
	if strings.ContainsAny(trimmed, " \t\r\n`{}[]") {
		return "", false
	}
	return trimmed, true
}

func checkAllowed(label string, allowed []string) (string, error) {
	if len(allowed) == 0 {
		return label, nil
	}
	for _, a := range allowed {
		if a == label {
			return label, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrInvalidLabel, label, allowed)
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
