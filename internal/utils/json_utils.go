package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject decodes the JSON object contained in a model response.
// Models often wrap the object in prose or code fences, so when the whole
// text is not valid JSON the outermost {...} span is tried instead.
func ExtractJSONObject(text string, v any) error {
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("failed to extract JSON from LLM response")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}
	return nil
}
