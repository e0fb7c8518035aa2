package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apppersist "github.com/bryanwahyu/automaton-relay/internal/application/persist"
	"github.com/bryanwahyu/automaton-relay/internal/callbacks"
	"github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
	"github.com/bryanwahyu/automaton-relay/internal/middleware"
)

type Router struct {
	persistSvc *apppersist.Service
	signer     *callbacks.Signer
	drops      droplog.Repository
}

func NewRouter(persistSvc *apppersist.Service, signer *callbacks.Signer, drops droplog.Repository) http.Handler {
	r := &Router{persistSvc: persistSvc, signer: signer, drops: drops}
	mux := chi.NewRouter()

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/callbacks/trigger", r.wrap(r.handleCallbackTrigger))
		rt.Get("/services", r.wrap(r.handleActiveServices))
		rt.Get("/drops", r.wrap(r.handleRecentDrops))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, callbacks.ErrBadToken) || errors.Is(err, callbacks.ErrBadSignature) {
				middleware.IncrementCallbacksRejected()
				http.Error(w, "invalid callback token", http.StatusUnauthorized)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/{tenant}/callbacks/trigger
// Body: {"callback": "<signed token>"}
// Verifies the token this relay issued with the evidence record and hands it
// off; the playbook engine consuming the action lives upstream.
func (r *Router) handleCallbackTrigger(w http.ResponseWriter, req *http.Request) error {
	if err := middleware.ValidateTenantID(chi.URLParam(req, "tenant")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	var body struct {
		Callback string `json:"callback"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if body.Callback == "" {
		http.Error(w, "callback is required", http.StatusBadRequest)
		return nil
	}

	payload, err := r.signer.Verify(body.Callback)
	if err != nil {
		return err
	}
	if err := middleware.ValidateAction(payload.Action); err != nil {
		return fmt.Errorf("%w: %v", callbacks.ErrBadToken, err)
	}

	middleware.IncrementCallbacksTriggered()
	log.Printf("callback triggered action=%s text=%q target=%s sink=%s",
		payload.Action, middleware.SanitizeString(payload.Text), payload.TargetID, payload.SinkName)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"status": "accepted",
		"action": payload.Action,
		"id":     payload.ID,
	})
}

// GET /v1/{tenant}/services
func (r *Router) handleActiveServices(w http.ResponseWriter, req *http.Request) error {
	out, err := r.persistSvc.ActiveServices(req.Context())
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}

// GET /v1/{tenant}/drops?limit=
func (r *Router) handleRecentDrops(w http.ResponseWriter, req *http.Request) error {
	if r.drops == nil {
		http.Error(w, "drop log not configured", http.StatusNotFound)
		return nil
	}
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	out, err := r.drops.Recent(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(out)
}
