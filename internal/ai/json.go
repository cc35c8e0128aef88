package ai

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeJSONReply strips markdown fences, isolates the first JSON object and
// decodes it into out.
func DecodeJSONReply(resp string, out any) error {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if obj, ok := ExtractJSONObject(cleaned); ok {
		cleaned = obj
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return eris.Wrap(err, "ai: decode json reply")
	}
	return nil
}

// ExtractJSONObject finds the first outermost balanced {...}.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
