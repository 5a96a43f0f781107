package extraction

import (
	"strings"
)

// RepairJSON cleans up a model response before parsing: Markdown fences
// are stripped, and if the remainder still does not look like JSON the
// text between the first '{' and the last '}' is sliced out. Applying it
// to an already clean JSON string is a no-op.
func RepairJSON(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.LastIndex(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	} else if strings.Contains(s, "```") {
		parts := strings.Split(s, "```")
		if len(parts) >= 2 {
			s = parts[1]
		}
	}

	s = strings.TrimSpace(s)

	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		if start := strings.Index(s, "{"); start >= 0 {
			s = s[start:]
		}
		if end := strings.LastIndex(s, "}"); end >= 0 {
			s = s[:end+1]
		}
	}

	return s
}
