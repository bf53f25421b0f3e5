package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"nonsense", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_LevelGate(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, "test")

	l.Debugf("hidden debug")
	l.Infof("hidden info")
	l.Warnf("visible warn")
	l.Errorf("visible error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-level messages leaked through: %q", out)
	}
	if !strings.Contains(out, "visible warn") || !strings.Contains(out, "visible error") {
		t.Errorf("high-level messages missing: %q", out)
	}
}

func TestLogger_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, "cycle")

	l.Infof("starting run %s", "abc123")

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO cycle: starting run abc123") {
		t.Errorf("unexpected line format: %q", line)
	}
	// Timestamp leads the line
	if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "INFO") {
		t.Errorf("line should start with a timestamp: %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelDebug, "daemon")

	l.WithComponent("fetch").Infof("child message")
	l.Infof("parent message")

	out := buf.String()
	if !strings.Contains(out, " fetch: child message") {
		t.Errorf("child component missing: %q", out)
	}
	if !strings.Contains(out, " daemon: parent message") {
		t.Errorf("parent component missing: %q", out)
	}
}
