package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/ayusman/spellkitchen/internal/recipe"
)

// RecipeHandler handles POST /api/recipes, which asks for a recipe without
// performing a ritual.
type RecipeHandler struct {
	rituals Rituals
	logger  *log.Logger
}

func NewRecipeHandler(r Rituals, logger *log.Logger) *RecipeHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RecipeHandler{rituals: r, logger: logger}
}

type recipeRequest struct {
	Ingredients []recipe.Ingredient `json:"ingredients"`
}

func (h *RecipeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.rituals == nil {
		writeError(w, http.StatusServiceUnavailable, "Recipe service is not available")
		return
	}

	var req recipeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ingredients, err := recipe.Validate(req.Ingredients)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.rituals.GenerateRecipe(r.Context(), ingredients)
	if err != nil {
		h.logger.Printf("generate recipe: %v", err)
		if errors.Is(err, recipe.ErrNoIngredients) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, recipe.ErrManifestationFailed.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}
