package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Confidence bounds for the LLM tier. Whatever the model reports is clamped
// into this window to reflect bounded trust in the tier.
const (
	MinConfidence = 0.5
	MaxConfidence = 0.9
)

// categorization is the structured output expected from the model.
type categorization struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation,omitempty"`
}

// batchItem is one element of the array expected from a batch request.
type batchItem struct {
	categorization
	ID string `json:"id"`
}

// cleanMarkdownWrapper strips a ```json ... ``` (or bare ```) fence that
// models sometimes wrap around structured output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// parseCategorization parses a single structured response. The parsed
// confidence is clamped to [MinConfidence, MaxConfidence].
func parseCategorization(content string) (*categorization, error) {
	content = cleanMarkdownWrapper(content)

	var resp categorization
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}
	if resp.Category == "" {
		return nil, fmt.Errorf("no category found in response")
	}

	resp.Confidence = clampLLMConfidence(resp.Confidence)
	return &resp, nil
}

// parseBatchCategorization parses an id-tagged array response. Unparseable
// content yields an empty map, never an error visible to the caller's
// transactions.
func parseBatchCategorization(content string) map[string]*categorization {
	content = cleanMarkdownWrapper(content)

	var items []batchItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Results []batchItem `json:"results"`
		}
		if err2 := json.Unmarshal([]byte(content), &wrapped); err2 != nil {
			return map[string]*categorization{}
		}
		items = wrapped.Results
	}

	out := make(map[string]*categorization, len(items))
	for i := range items {
		item := items[i]
		if item.ID == "" || item.Category == "" {
			continue
		}
		item.Confidence = clampLLMConfidence(item.Confidence)
		c := item.categorization
		out[item.ID] = &c
	}
	return out
}

func clampLLMConfidence(c float64) float64 {
	// Recover confidences reported as percentages.
	if c > 1 && c <= 100 {
		c /= 100
	}
	switch {
	case c < MinConfidence:
		return MinConfidence
	case c > MaxConfidence:
		return MaxConfidence
	}
	return c
}
