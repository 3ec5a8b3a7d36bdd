// Package api provides the HTTP handlers for rituals and recipes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/spellkitchen/internal/app"
	"github.com/ayusman/spellkitchen/internal/recipe"
	"github.com/ayusman/spellkitchen/internal/ritual"
)

// maxBodyBytes caps request bodies; ingredient lists are small.
const maxBodyBytes = 64 << 10

// Rituals is the part of app.App the handlers use.
type Rituals interface {
	StartSession(ingredients []recipe.Ingredient, kind ritual.Kind) (*ritual.Session, error)
	CancelSession() error
	Current() (app.Ritual, bool)
	GenerateRecipe(ctx context.Context, ingredients []recipe.Ingredient) (*recipe.Result, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
