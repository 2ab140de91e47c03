// Package extract recovers a JSON payload from free-form model text. Models
// that are not contractually guaranteed to emit pure JSON wrap their output
// in prose or code fences; the pipeline tolerates that drift here instead of
// in every adapter.
package extract

import (
	"encoding/json"
	"strings"
)

// Error reports that no parseable JSON object could be located. Raw carries
// the original model text for diagnostics.
type Error struct {
	Raw    string
	Reason string
}

func (e *Error) Error() string {
	return "extract: " + e.Reason
}

// JSON locates a JSON object inside raw. First it slices from the first '{'
// to the last '}' and tries to parse; if that fails it strips triple-backtick
// fences (with an optional language tag) and retries. Both failing yields an
// *Error with the raw text attached.
func JSON(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &Error{Raw: raw, Reason: "empty input"}
	}

	if payload, ok := parseBraceSlice(text); ok {
		return payload, nil
	}

	unfenced := trimCodeFence(text)
	if unfenced != text {
		if payload, ok := parseBraceSlice(unfenced); ok {
			return payload, nil
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, &Error{Raw: raw, Reason: "no JSON object found"}
	}
	return nil, &Error{Raw: raw, Reason: "located braces do not parse as JSON"}
}

// Into extracts and unmarshals in one step.
func Into(raw string, out any) error {
	payload, err := JSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Raw: raw, Reason: "decode payload: " + err.Error()}
	}
	return nil
}

func parseBraceSlice(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, false
	}
	candidate := strings.TrimSpace(text[start : end+1])
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
