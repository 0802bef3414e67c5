package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInitWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, log.DebugLevel)
	defer func() { Logger = nil }()

	Info("scan finished", "confidence", 70)
	Debug("detail", "kind", "news")

	out := buf.String()
	if !strings.Contains(out, "scan finished") {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, "confidence=70") {
		t.Errorf("expected confidence=70 in output, got: %s", out)
	}
	if !strings.Contains(out, "kind=news") {
		t.Errorf("expected debug key/value in output, got: %s", out)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, log.InfoLevel)
	defer func() { Logger = nil }()

	Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug output should be filtered at info level, got: %s", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	Logger = nil
	Info("no-op")
	Warn("no-op")
	Error("no-op")
	if WithPrefix("x") != nil {
		t.Error("WithPrefix should return nil before Init")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"bogus", log.InfoLevel},
		{"", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
