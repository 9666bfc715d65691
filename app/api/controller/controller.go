package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/app/api/types"
	"github.com/veilpoll/veilpoll/pkg/utils"
)

type Controller struct {
	App       *types.App
	JWTSecret []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:       app,
		JWTSecret: []byte(utils.Env("SESSION_SECRET", "change-me-please")),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)

	// Wallet session lifecycle
	r.HandleFunc("/api/auth/connect", c.HandleConnect).Methods(http.MethodPost)
	r.Handle("/api/auth/disconnect", c.RequireWallet(http.HandlerFunc(c.HandleDisconnect))).Methods(http.MethodPost)

	// Polls
	r.HandleFunc("/api/polls", c.HandlePollsList).Methods(http.MethodGet)
	r.Handle("/api/polls", c.RequireWallet(http.HandlerFunc(c.HandlePollCreate))).Methods(http.MethodPost)
	r.HandleFunc("/api/polls/{id}", c.HandlePollDetail).Methods(http.MethodGet)

	// Weekly selections
	r.Handle("/api/polls/{id}/select", c.RequireWallet(http.HandlerFunc(c.HandleSelect))).Methods(http.MethodPost)
	r.Handle("/api/selections/{id}", c.RequireWallet(http.HandlerFunc(c.HandleDeselect))).Methods(http.MethodDelete)
	r.Handle("/api/selections", c.RequireWallet(http.HandlerFunc(c.HandleSelectionsList))).Methods(http.MethodGet)

	// Confidential votes
	r.Handle("/api/polls/{id}/vote", c.RequireWallet(http.HandlerFunc(c.HandleVote))).Methods(http.MethodPost)
	r.Handle("/api/polls/{id}/vote/status", c.RequireWallet(http.HandlerFunc(c.HandleVoteStatus))).Methods(http.MethodGet)
	r.Handle("/api/votes", c.RequireWallet(http.HandlerFunc(c.HandleVoteHistory))).Methods(http.MethodGet)

	// Reveal
	r.Handle("/api/polls/{id}/reveal", c.RequireWallet(http.HandlerFunc(c.HandleReveal))).Methods(http.MethodPost)
	r.HandleFunc("/api/polls/{id}/results", c.HandleResults).Methods(http.MethodGet)

	// Points
	r.Handle("/api/points", c.RequireWallet(http.HandlerFunc(c.HandlePoints))).Methods(http.MethodGet)
	r.Handle("/api/points/history", c.RequireWallet(http.HandlerFunc(c.HandlePointsHistory))).Methods(http.MethodGet)

	return r, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
