package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseItemsJSON parses the JSON response from the model into a Result
func parseItemsJSON(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response text")
	}

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw struct {
		Items *[]ExtractedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// A missing items array violates the declared schema. An empty one
	// does not: a receipt with nothing usable is a valid result.
	if raw.Items == nil {
		return nil, fmt.Errorf("response missing items array")
	}

	result := &Result{Items: make([]ExtractedItem, 0, len(*raw.Items))}
	for _, item := range *raw.Items {
		item.Name = strings.TrimSpace(item.Name)
		result.Items = append(result.Items, item)
	}

	return result, nil
}
