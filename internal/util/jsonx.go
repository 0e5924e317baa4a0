package util

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoJSONObject = errors.New("no JSON object found in text")

// DecodeLooseJSON unmarshals a JSON object that may arrive wrapped in
// markdown code fences or explanatory prose. It tries the text verbatim,
// then the interior of the first fenced block, then the widest {...} span.
func DecodeLooseJSON(text string, out any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrNoJSONObject
	}

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	if inner, ok := insideFences(trimmed); ok {
		if err := json.Unmarshal([]byte(inner), out); err == nil {
			return nil
		}
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err == nil {
			return nil
		}
	}
	return ErrNoJSONObject
}

func insideFences(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := strings.TrimPrefix(text[open+3:], "json")
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
