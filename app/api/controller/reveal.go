package controller

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/reveal"
	"go.uber.org/zap"
)

// HandleReveal triggers decryption of a poll's aggregate tally. Only the
// poll's creator may call it here; overdue polls are swept by the scheduler
// under the service authority.
func (c *Controller) HandleReveal(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	pollID := mux.Vars(r)["id"]

	outcome, err := c.App.Revealer.Reveal(r.Context(), pollID, wallet, reveal.UserTimeout)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, "poll not found")
		case errors.Is(err, reveal.ErrNotAuthority):
			respondError(w, http.StatusForbidden, "only the poll creator can reveal")
		case errors.Is(err, reveal.ErrNotPromoted):
			respondError(w, http.StatusConflict, "poll has no ledger tally to reveal")
		case errors.Is(err, mpc.ErrComputationTimeout):
			// The reveal may still complete; the client should poll results.
			respondError(w, http.StatusAccepted, "reveal submitted, result pending")
		default:
			c.App.Logger.Error("Reveal failed",
				zap.String("pollId", pollID),
				zap.Error(err))
			respondError(w, http.StatusBadGateway, "reveal failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}
