package stream

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy names the fallback rule that recovered a response.
type Strategy int

const (
	StrategyNone Strategy = iota
	// StrategyPlainText joins raw lines that carry no JSON structure at all.
	StrategyPlainText
	// StrategyPattern pulls quoted values of "content"/"response" keys out of broken JSON.
	StrategyPattern
)

func (s Strategy) String() string {
	switch s {
	case StrategyPlainText:
		return "plain_text"
	case StrategyPattern:
		return "pattern"
	default:
		return "none"
	}
}

// contentPattern matches a quoted value after a content or response key. The
// closing quote is optional so truncated lines still yield their prefix.
var contentPattern = regexp.MustCompile(`"(?:content|response)"\s*:\s*"((?:[^"\\]|\\.)*)`)

type recoverer struct {
	strategy Strategy
	run      func(raw []string) string
}

var recoveryOrder = []recoverer{
	{strategy: StrategyPlainText, run: plainText},
	{strategy: StrategyPattern, run: patternText},
}

// Extract attempts best-effort recovery of response text from raw lines that
// failed structured parsing. With strict set, only the plain text rule runs.
// It never panics on malformed input.
func Extract(raw []string, strict bool) (string, Strategy, error) {
	for _, r := range recoveryOrder {
		if strict && r.strategy == StrategyPattern {
			continue
		}
		if text := r.run(raw); text != "" {
			return text, r.strategy, nil
		}
	}
	return "", StrategyNone, ErrNoRecoverableText
}

func plainText(raw []string) string {
	if len(raw) == 0 {
		return ""
	}
	parts := make([]string, 0, len(raw))
	for _, line := range raw {
		s := strings.TrimSpace(line)
		if s == "" || strings.ContainsAny(s, "{}") {
			return ""
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func patternText(raw []string) string {
	var b strings.Builder
	for _, line := range raw {
		for _, m := range contentPattern.FindAllStringSubmatch(line, -1) {
			b.WriteString(unescapeJSON(m[1]))
		}
	}
	return b.String()
}

// unescapeJSON decodes JSON string escapes, returning s untouched when it is not
// a valid JSON string body (e.g. cut in the middle of an escape).
func unescapeJSON(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	return s
}
