package logging

import (
	"regexp"
)

// Sanitizer redacts credentials from log messages. Backend URLs and tool
// payloads pass through the logger, so both carry the usual suspects.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Provider API keys that show up in agent and tool output
		`sk-ant-[a-zA-Z0-9-]{40,}`,
		`sk-[A-Za-z0-9]{20,}`,
		`AIza[a-zA-Z0-9_-]{35}`,
		`gh[pousr]_[A-Za-z0-9]{36}`,
		`AKIA[0-9A-Z]{16}`,
		`xox[baprs]-[0-9a-zA-Z-]{10,}`,
		// Credentials embedded in backend URLs: ws://user:pass@host
		`(?i)(wss?|https?)://[^/\s:@]+:[^/\s@]+@`,
		// Query string credentials: ?token=... &api_key=...
		`(?i)[?&](token|access_token|api_key|apikey|key)=[^&\s"']+`,
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		`(?i)password["'\s:=]+[^\s"']{8,}`,
		`(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// SanitizeMap redacts string values in a map, recursing into nested maps.
func (s *Sanitizer) SanitizeMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			result[k] = s.Sanitize(val)
		case map[string]interface{}:
			result[k] = s.SanitizeMap(val)
		default:
			result[k] = v
		}
	}
	return result
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}
