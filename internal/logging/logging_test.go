package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"DEBUG":    zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"critical": zerolog.FatalLevel,
		"off":      zerolog.Disabled,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New("warning", "auto", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info().Msg("hidden")
	lg.Warn().Str("k", "v").Msg("shown")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if m["message"] != "shown" || m["k"] != "v" || m["level"] != "warn" {
		t.Fatalf("unexpected entry: %v", m)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New("info", "console", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lg.Info().Msg("hello")
	out := buf.String()
	if !strings.Contains(out, "hello") || strings.HasPrefix(out, "{") {
		t.Fatalf("expected console output, got %q", out)
	}
}

func TestNew_BadFormat(t *testing.T) {
	if _, err := New("info", "xml", nil); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
