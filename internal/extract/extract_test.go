package extract

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONPlainObject(t *testing.T) {
	payload, err := JSON(`{"a":1}`)
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}
	assertField(t, payload, "a", float64(1))
}

func TestJSONWrappedInProseAndFence(t *testing.T) {
	raw := "Sure! ```json\n{\"a\":1}\n```"
	payload, err := JSON(raw)
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}
	assertField(t, payload, "a", float64(1))
}

func TestJSONLeadingAndTrailingNoise(t *testing.T) {
	raw := "Here is the plan you asked for:\n{\"title\":\"x\",\"n\":2}\nLet me know!"
	payload, err := JSON(raw)
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}
	assertField(t, payload, "title", "x")
}

func TestJSONFenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"ok\":true}\n```"
	payload, err := JSON(raw)
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}
	assertField(t, payload, "ok", true)
}

func TestJSONNoBraces(t *testing.T) {
	_, err := JSON("no structured output here")
	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if xerr.Raw != "no structured output here" {
		t.Fatalf("raw text not preserved: %q", xerr.Raw)
	}
}

func TestJSONGarbageBetweenBraces(t *testing.T) {
	_, err := JSON("prefix { this is not json } suffix")
	var xerr *Error
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestJSONEmptyInput(t *testing.T) {
	if _, err := JSON("   "); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestIntoDecodesStruct(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := Into("```json\n{\"title\":\"hook\"}\n```", &out); err != nil {
		t.Fatalf("Into returned error: %v", err)
	}
	if out.Title != "hook" {
		t.Fatalf("title = %q, want hook", out.Title)
	}
}

func assertField(t *testing.T, payload json.RawMessage, key string, want any) {
	t.Helper()
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if decoded[key] != want {
		t.Fatalf("payload[%q] = %v, want %v", key, decoded[key], want)
	}
}
