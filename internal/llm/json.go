package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned for blank model output.
var ErrEmptyResponse = errors.New("empty LLM response")

// ParseJSONResponse parses a JSON object from an LLM, handling markdown code blocks.
func ParseJSONResponse(text string) (map[string]any, error) {
	text = StripCodeFence(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parsing LLM response as JSON: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("parsing LLM response as JSON: null object")
	}
	return result, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence, if present.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(strings.Trim(text, "`"))
	}
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
