package recipe

import "strings"

// DefaultQuantity is used when an ingredient is given without an amount.
const DefaultQuantity = "适量"

// Validate trims the list, drops entries without a name and fills in
// missing quantities. It returns ErrNoIngredients when nothing is left.
func Validate(ingredients []Ingredient) ([]Ingredient, error) {
	out := make([]Ingredient, 0, len(ingredients))
	for _, in := range ingredients {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			continue
		}
		qty := strings.TrimSpace(in.Quantity)
		if qty == "" {
			qty = DefaultQuantity
		}
		out = append(out, Ingredient{Name: name, Quantity: qty})
	}
	if len(out) == 0 {
		return nil, ErrNoIngredients
	}
	return out, nil
}
