package chatgen

import (
	"encoding/json"
	"fmt"
)

// ParseStructured extracts the first balanced JSON object from text — chat
// models routinely wrap their JSON payload in prose or markdown code fences
// — and unmarshals it into out. Planner, Validator, and the Executor's
// LLM-backed parameter synthesis all share this one parsing path, so "a
// malformed model response is data, not a thrown error" is handled the same
// way everywhere a node talks to a Generator.
func ParseStructured(text string, out any) error {
	raw := extractJSONObject(text)
	if raw == "" {
		return fmt.Errorf("chatgen: no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("chatgen: %w", err)
	}
	return nil
}

// extractJSONObject returns the first balanced {...} block in text, or ""
// if none is found.
func extractJSONObject(text string) string {
	start := -1
	depth := 0
	for i, r := range text {
		switch r {
		case '{':
			if start == -1 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
