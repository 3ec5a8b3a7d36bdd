// Package recipe turns a list of kitchen ingredients into a themed recipe
// by asking a generative language model for structured JSON.
package recipe

import (
	"context"
	"errors"
)

var (
	// ErrNoIngredients is returned when a request names no usable ingredient.
	ErrNoIngredients = errors.New("at least one ingredient is required")

	// ErrManifestationFailed wraps every failure of the model call or of
	// decoding its answer. Callers show a generic message and do not retry.
	ErrManifestationFailed = errors.New("manifestation failed")
)

// Ingredient is one line of the user's shopping list.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// MagicalIngredient is an ingredient renamed for the ritual.
type MagicalIngredient struct {
	MagicalName  string `json:"magicalName"`
	OriginalName string `json:"originalName"`
	Quantity     string `json:"quantity"`
	VisualIcon   string `json:"visualIcon"`
}

// MagicalEffect describes what the finished dish does to whoever eats it.
type MagicalEffect struct {
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// Result is the structured recipe returned by the model.
type Result struct {
	DishName      string              `json:"dishName"`
	Ingredients   []MagicalIngredient `json:"ingredients"`
	RitualSteps   []string            `json:"ritualSteps"`
	MagicalEffect MagicalEffect       `json:"magicalEffect"`
}

// Generator produces a recipe for a validated ingredient list.
type Generator interface {
	Generate(ctx context.Context, ingredients []Ingredient) (*Result, error)
}
