// Package controller exposes the lifecycle tasks over HTTP so operators and
// external cron can trigger runs outside the built-in schedule.
package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/app/scheduler/types"
	"github.com/veilpoll/veilpoll/pkg/utils"
	"go.uber.org/zap"
)

type Controller struct {
	App    *types.App
	Secret string
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:    app,
		Secret: utils.Env("CRON_SECRET", "devtoken"),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)

	r.Handle("/api/tasks/promote", c.RequireSecret(http.HandlerFunc(c.HandlePromote))).Methods(http.MethodPost)
	r.Handle("/api/tasks/reveal", c.RequireSecret(http.HandlerFunc(c.HandleAutoReveal))).Methods(http.MethodPost)
	r.Handle("/api/tasks/archive", c.RequireSecret(http.HandlerFunc(c.HandleArchive))).Methods(http.MethodPost)

	return r, nil
}

// RequireSecret middleware: the task endpoints mutate ledger state, so they
// are gated on a shared bearer secret.
func (c *Controller) RequireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || strings.TrimPrefix(authHeader, "Bearer ") != c.Secret {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Postgres.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "postgres unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePromote runs the weekly promotion immediately.
func (c *Controller) HandlePromote(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Tasks.PromoteTopNominations(r.Context())
	if err != nil {
		c.App.Logger.Error("Manual promotion run failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleAutoReveal sweeps overdue polls immediately.
func (c *Controller) HandleAutoReveal(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Tasks.RevealOverduePolls(r.Context())
	if err != nil {
		c.App.Logger.Error("Manual reveal sweep failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// HandleArchive archives stale nominations immediately.
func (c *Controller) HandleArchive(w http.ResponseWriter, r *http.Request) {
	out, err := c.App.Tasks.ArchiveStaleNominations(r.Context())
	if err != nil {
		c.App.Logger.Error("Manual archive run failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
