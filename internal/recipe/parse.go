package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// parseResult decodes the model text into a Result and checks its shape
// against the ingredients that were asked for.
func parseResult(text string, asked []Ingredient) (*Result, error) {
	text = stripFence(text)
	if text == "" {
		return nil, errors.New("empty recipe text")
	}

	var res Result
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("decode recipe: %w", err)
	}

	if strings.TrimSpace(res.DishName) == "" {
		return nil, errors.New("recipe has no dish name")
	}
	if len(res.Ingredients) != len(asked) {
		return nil, fmt.Errorf("recipe has %d ingredients, want %d", len(res.Ingredients), len(asked))
	}
	for i, in := range res.Ingredients {
		if strings.TrimSpace(in.MagicalName) == "" {
			return nil, fmt.Errorf("ingredient %d has no magical name", i)
		}
	}
	if len(res.RitualSteps) == 0 {
		return nil, errors.New("recipe has no ritual steps")
	}

	return &res, nil
}

// stripFence removes a surrounding ```json ... ``` block if the model added one.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = ""
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
