package stream

import (
	"errors"
	"testing"
)

func TestExtract_PlainText(t *testing.T) {
	text, strategy, err := Extract([]string{"Hello", "world"}, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if text != "Hello world" || strategy != StrategyPlainText {
		t.Fatalf("got %q via %v", text, strategy)
	}
	// lines are stripped before joining
	text, _, _ = Extract([]string{"  Hello \r\n", "\tworld\n"}, false)
	if text != "Hello world" {
		t.Fatalf("got %q", text)
	}
}

func TestExtract_PlainTextRejectsBlankOrStructured(t *testing.T) {
	// a blank line disqualifies plain text and nothing matches the pattern
	if _, _, err := Extract([]string{"Hello", "   "}, false); !errors.Is(err, ErrNoRecoverableText) {
		t.Fatalf("expected ErrNoRecoverableText, got %v", err)
	}
	if _, _, err := Extract([]string{"Hello", "{broken"}, false); !errors.Is(err, ErrNoRecoverableText) {
		t.Fatalf("expected ErrNoRecoverableText, got %v", err)
	}
}

func TestExtract_PatternTruncated(t *testing.T) {
	text, strategy, err := Extract([]string{`{"response": "partial text`}, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if text != "partial text" || strategy != StrategyPattern {
		t.Fatalf("got %q via %v", text, strategy)
	}
}

func TestExtract_PatternVariants(t *testing.T) {
	cases := []struct {
		raw  []string
		want string
	}{
		{[]string{`{"message":{"content":"Hi"},"done":false,`}, "Hi"},
		{[]string{`{"response": "say \"hi\"",`}, `say "hi"`},
		{[]string{`{"response":"line\nbreak`}, "line\nbreak"},
		{[]string{`{"response":"abc\`}, "abc"},
		{[]string{`{"response":"a",}`, `garbage`, `{"content" : "b"`}, "ab"},
		{[]string{`{"response":"x"} {"response":"y"}`}, "xy"},
		{[]string{`{"response":"café`}, "café"},
	}
	for _, c := range cases {
		text, strategy, err := Extract(c.raw, false)
		if err != nil {
			t.Fatalf("%q: err %v", c.raw, err)
		}
		if text != c.want || strategy != StrategyPattern {
			t.Fatalf("%q: got %q via %v, want %q", c.raw, text, strategy, c.want)
		}
	}
}

func TestExtract_StrictSkipsPattern(t *testing.T) {
	if _, _, err := Extract([]string{`{"response": "partial text`}, true); !errors.Is(err, ErrNoRecoverableText) {
		t.Fatalf("expected strict extraction to fail, got %v", err)
	}
	text, strategy, err := Extract([]string{"Hello", "world"}, true)
	if err != nil || text != "Hello world" || strategy != StrategyPlainText {
		t.Fatalf("got %q via %v err=%v", text, strategy, err)
	}
}

func TestExtract_NothingUsable(t *testing.T) {
	for _, raw := range [][]string{nil, {}, {`{"response":""`}, {`{"status":"x"`}} {
		text, strategy, err := Extract(raw, false)
		if !errors.Is(err, ErrNoRecoverableText) || text != "" || strategy != StrategyNone {
			t.Fatalf("%q: got %q via %v err=%v", raw, text, strategy, err)
		}
	}
}
