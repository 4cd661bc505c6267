package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON pulls a JSON document out of a model reply. Models routinely
// wrap JSON in markdown fences or surround it with prose; this strips fences
// first and then falls back to the outermost brace or bracket pair.
// Returns "" when no valid JSON can be found.
func ExtractJSON(reply string) string {
	s := strings.TrimSpace(reply)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	if gjson.Valid(s) {
		return s
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(s, pair[0])
		end := strings.LastIndex(s, pair[1])
		if start >= 0 && end > start {
			if candidate := s[start : end+1]; gjson.Valid(candidate) {
				return candidate
			}
		}
	}
	return ""
}
