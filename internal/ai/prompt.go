package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/snapup/internal/crawler"
	"github.com/v0xg/snapup/internal/executor"
)

const systemPrompt = `You are a browser automation script generator. You turn a natural language request into a JSON array of actions for a replay engine.

You will receive:
1. A page map with the URL, title, and the interactive elements of the page. Every element carries a "locator_type" and a "locator_value".
2. A user request describing what to do.

Each action object has:
- "action": one of "input", "click", "get_title", "get_current_url", "find_element", "find_elements", "execute_script", "save_screenshot", "go_back", "refresh"
- "locator_type" and "locator_value": copied from the page map (required for input, click, find_element, find_elements)
- "input_value": the text to type (required for input)
- "script": JavaScript function body (required for execute_script)
- "path": file name (required for save_screenshot)

Guidelines:
- Use only locators present in the page map.
- Keep the sequence minimal but complete.
- End with a value-producing action (get_title, find_element, ...) when the request asks for information.

Example output:
[
  {"action": "input", "locator_type": "ID", "locator_value": "search", "input_value": "hello"},
  {"action": "click", "locator_type": "CSS_SELECTOR", "locator_value": "#search-btn"},
  {"action": "get_title"}
]

Respond ONLY with the JSON array, no explanation or markdown.`

func buildUserPrompt(pageMap *crawler.PageMap, request string) (string, error) {
	data, err := json.MarshalIndent(pageMap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal page map: %w", err)
	}
	return "Page map:\n" + string(data) + "\n\nUser request: " + request, nil
}

// parseActions extracts the first JSON array from a model response, which
// may be wrapped in prose or a code fence.
func parseActions(response string) ([]executor.Action, error) {
	start := strings.Index(response, "[")
	if start == -1 {
		return nil, errors.New("no JSON array found in response")
	}

	var actions []executor.Action
	dec := json.NewDecoder(strings.NewReader(response[start:]))
	if err := dec.Decode(&actions); err != nil {
		return nil, fmt.Errorf("failed to parse actions: %w", err)
	}

	kept := actions[:0]
	for _, a := range actions {
		if a.Name.Known() {
			kept = append(kept, a)
		}
	}
	return kept, nil
}
