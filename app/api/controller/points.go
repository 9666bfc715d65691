package controller

import (
	"net/http"
	"strconv"
)

// HandlePoints returns the wallet's current balance.
func (c *Controller) HandlePoints(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	balance, err := c.App.Stores.Points.Balance(r.Context(), wallet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load balance")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "balance": balance})
}

// HandlePointsHistory returns the wallet's recent point entries.
func (c *Controller) HandlePointsHistory(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	entries, err := c.App.Stores.Points.History(r.Context(), wallet, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"wallet": wallet, "entries": entries})
}
