package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ayusman/spellkitchen/internal/app"
	"github.com/ayusman/spellkitchen/internal/recipe"
	"github.com/ayusman/spellkitchen/internal/ritual"
)

// RitualHandler handles /api/rituals and /api/rituals/current.
type RitualHandler struct {
	rituals Rituals
	logger  *log.Logger
}

// NewRitualHandler creates a RitualHandler. A nil Rituals answers every
// request with 503.
func NewRitualHandler(r Rituals, logger *log.Logger) *RitualHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &RitualHandler{rituals: r, logger: logger}
}

type startRitualRequest struct {
	Ingredients []recipe.Ingredient `json:"ingredients"`
	Kind        string              `json:"kind"`
}

type startRitualResponse struct {
	ID     string        `json:"id"`
	Kind   ritual.Kind   `json:"kind"`
	Status ritual.Status `json:"status"`
}

// ServeHTTP routes between the collection and the current ritual.
func (h *RitualHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.rituals == nil {
		writeError(w, http.StatusServiceUnavailable, "Camera pipeline is not available")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/rituals")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "current":
		switch r.Method {
		case http.MethodGet:
			h.current(w, r)
		case http.MethodDelete:
			h.cancel(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// start handles POST /api/rituals.
func (h *RitualHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRitualRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ingredients, err := recipe.Validate(req.Ingredients)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var kind ritual.Kind
	if req.Kind != "" {
		if kind, err = ritual.ParseKind(req.Kind); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s, err := h.rituals.StartSession(ingredients, kind)
	switch {
	case errors.Is(err, app.ErrSessionActive):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, app.ErrPipelineStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, recipe.ErrNoIngredients):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Printf("start ritual: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start ritual")
		return
	}

	writeJSON(w, http.StatusCreated, startRitualResponse{
		ID:     s.ID(),
		Kind:   s.Kind(),
		Status: s.Status(),
	})
}

// current handles GET /api/rituals/current.
func (h *RitualHandler) current(w http.ResponseWriter, r *http.Request) {
	cur, ok := h.rituals.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "No ritual has been started")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// cancel handles DELETE /api/rituals/current.
func (h *RitualHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.rituals.CancelSession(); err != nil {
		if errors.Is(err, app.ErrNoSession) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to cancel ritual")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
