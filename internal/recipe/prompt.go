package recipe

import (
	"fmt"
	"strings"
)

const systemInstruction = `You are the head alchemist of a hidden kitchen guild. Apprentices bring you
ordinary ingredients and you reveal the enchanted dish they were always meant to become.

Rules:
- Use every ingredient you are given, exactly once, and no others.
- Give each ingredient a magical name, keep its original name and quantity, and pick one emoji as its icon.
- The dish must be cookable in a real kitchen; ritual steps are real cooking steps told as spellwork.
- Describe one playful magical effect and how long it lasts.
- Answer in the same language the ingredients are written in.
- Reply with JSON only, matching the provided schema.`

// buildPrompt lists the ingredients for the user turn.
func buildPrompt(ingredients []Ingredient) string {
	var b strings.Builder
	b.WriteString("Ingredients on the altar:\n")
	for _, in := range ingredients {
		fmt.Fprintf(&b, "- %s: %s\n", in.Name, in.Quantity)
	}
	b.WriteString("\nReveal the recipe.")
	return b.String()
}

// responseSchema constrains the model output to the Result shape.
func responseSchema() map[string]any {
	str := map[string]any{"type": "STRING"}
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"dishName": str,
			"ingredients": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"magicalName":  str,
						"originalName": str,
						"quantity":     str,
						"visualIcon":   str,
					},
					"required": []string{"magicalName", "originalName", "quantity", "visualIcon"},
				},
			},
			"ritualSteps": map[string]any{
				"type":  "ARRAY",
				"items": str,
			},
			"magicalEffect": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"duration":    str,
					"description": str,
				},
				"required": []string{"duration", "description"},
			},
		},
		"required": []string{"dishName", "ingredients", "ritualSteps", "magicalEffect"},
	}
}
