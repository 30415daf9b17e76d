package steps

import (
	"encoding/json"
	"errors"
	"strings"
)

const fence = "```"

var (
	errNoContent  = errors.New("no content to parse")
	errEmptyArray = errors.New("no items recovered")
	errNoObject   = errors.New("no JSON object found")
)

// StripFences removes a surrounding code fence (``` or ```json) when both the
// opening and closing markers are present. Anything else is returned trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if len(s) < 2*len(fence) || !strings.HasPrefix(s, fence) || !strings.HasSuffix(s, fence) {
		return s
	}
	inner := s[len(fence) : len(s)-len(fence)]
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 && isFenceTag(inner[:nl]) {
		inner = inner[nl+1:]
	} else if isFenceTag(inner) {
		return ""
	} else if strings.HasPrefix(strings.ToLower(inner), "json") {
		inner = inner[len("json"):]
	}
	return strings.TrimSpace(inner)
}

func isFenceTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// RecoverJSONArray turns near-JSON model output into a list of strings.
// It strips fences, then parses a JSON array of strings. If the text is not
// JSON, or is JSON of another shape, it falls back to splitting the text on
// commas between the outer brackets. Empty entries are dropped.
func RecoverJSONArray(text string) ([]string, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, errNoContent
	}

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		if items, ok := stringList(parsed); ok {
			out := compactStrings(items)
			if len(out) == 0 {
				return nil, errEmptyArray
			}
			return out, nil
		}
	}

	out := splitBracketList(cleaned)
	if len(out) == 0 {
		return nil, errEmptyArray
	}
	return out, nil
}

func stringList(v any) ([]string, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, it := range arr {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func splitBracketList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	return compactStrings(strings.Split(s, ","))
}

func compactStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RecoverJSONObject returns the JSON object contained in text. Fences are
// stripped first; if the result still does not parse, the span between the
// first '{' and the last '}' is tried.
func RecoverJSONObject(text string) (json.RawMessage, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, errNoContent
	}
	if isJSONObject(cleaned) {
		return json.RawMessage(cleaned), nil
	}
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return nil, errNoObject
	}
	candidate := cleaned[start : end+1]
	if !isJSONObject(candidate) {
		return nil, errNoObject
	}
	return json.RawMessage(candidate), nil
}

func isJSONObject(s string) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil && obj != nil
}
