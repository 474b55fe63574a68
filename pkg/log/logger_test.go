package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("warn"); err != nil || lvl != WarnLevel {
		t.Fatalf("parse warn: %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if lvl, _ := ParseLevel(""); lvl != InfoLevel {
		t.Fatalf("empty should default to info")
	}
}

func TestLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithWriter(&buf), WithLevel(WarnLevel))
	l.Info("hidden")
	l.Warn("shown", Str("k", "v"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info leaked through warn gate: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("missing warn line: %s", out)
	}
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithWriter(&buf), WithJSON()).With(Component("worker"))
	l.Info("run done", Int("processed", 3))
	out := buf.String()
	if !strings.Contains(out, `"component":"worker"`) || !strings.Contains(out, `"processed":3`) {
		t.Fatalf("fields missing: %s", out)
	}
}
