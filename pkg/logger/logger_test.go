package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"trace":   TraceLevel,
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel}, &buf)

	l.Log(InfoLevel, "hidden")
	l.Log(WarnLevel, "visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, JSON: true, Component: "stage-runner"}, &buf)

	l.Log(InfoLevel, "wave complete", Int("stages", 2))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Message != "wave complete" || entry.Component != "stage-runner" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if v, ok := entry.Fields["stages"]; !ok || v != float64(2) {
		t.Fatalf("missing stages field: %+v", entry.Fields)
	}
}

func TestLoggerPrettyFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DebugLevel}, &buf)

	l.Log(DebugLevel, "task finished", String("task", "format"), Bool("blocking", true))

	out := buf.String()
	if !strings.Contains(out, "task finished") || !strings.Contains(out, "task=format") {
		t.Errorf("pretty output missing fields: %q", out)
	}
}
