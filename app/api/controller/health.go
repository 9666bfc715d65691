package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.App.Postgres.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "postgres unreachable")
		return
	}
	if err := c.App.Redis.Ping(r.Context()).Err(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "redis unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
