package scenario

import (
	"fmt"
	"strings"
)

// ExpandTemplates replaces {{name}} placeholders with values from vars.
// Unknown names are an error.
func ExpandTemplates(s string, vars map[string]string) (string, error) {
	result := s
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", start)
		}
		end += start + 2 // move past "}}"

		name := strings.TrimSpace(result[start+2 : end-2])
		value, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("unknown template variable %q", name)
		}
		result = result[:start] + value + result[end:]
	}
	return result, nil
}
