// Package api serves slot content over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/rules"
	"rgehrsitz/nest/internal/runtime"
)

// Handler implements the API handlers.
type Handler struct {
	rules   []rules.Rule
	engine  *runtime.Engine
	caches  CacheSource
	version string
}

// NewHandler creates a Handler serving rs.
func NewHandler(rs []rules.Rule, engine *runtime.Engine, caches CacheSource, version string) *Handler {
	if engine == nil {
		engine = runtime.New()
	}
	return &Handler{
		rules:   rs,
		engine:  engine,
		caches:  caches,
		version: version,
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Rules   int    `json:"rules"`
}

// MatchSummary describes one matching rule in an explain response.
type MatchSummary struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Template string `json:"template"`
}

// Health returns the health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: h.version,
		Rules:   len(h.rules),
	})
}

// Slot handles GET /v1/slots/{screen}/{slot}, reading the context from the
// query string.
func (h *Handler) Slot(w http.ResponseWriter, r *http.Request) {
	rc, err := contextFromQuery(r.URL.Query())
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.pick(w, r, rc)
}

// SlotWithBody handles POST /v1/slots/{screen}/{slot}, reading the context
// from a JSON body.
func (h *Handler) SlotWithBody(w http.ResponseWriter, r *http.Request) {
	var rc rules.RuleContext
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	h.pick(w, r, &rc)
}

// Explain handles GET /v1/explain/{screen}/{slot}, listing every matching
// rule in selection order without resolving props.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	rc, err := contextFromQuery(r.URL.Query())
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	screen, slot := target(r)

	matched := h.engine.Match(h.rules, screen, slot, rc)
	out := make([]MatchSummary, 0, len(matched))
	for _, m := range matched {
		out = append(out, MatchSummary{Name: m.Name, Priority: m.Priority, Template: m.Content.Template})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) pick(w http.ResponseWriter, r *http.Request, rc *rules.RuleContext) {
	id, err := identityFromRequest(r)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	screen, slot := target(r)

	sel := h.engine.PickForSlot(r.Context(), h.rules, screen, slot, rc, h.caches.For(id))
	if sel == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func target(r *http.Request) (rules.Screen, rules.Slot) {
	return rules.Screen(chi.URLParam(r, "screen")), rules.Slot(chi.URLParam(r, "slot"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
