package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/selection"
	"go.uber.org/zap"
)

// HandleSelect endorses a nomination-stage poll for this week.
func (c *Controller) HandleSelect(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	pollID := mux.Vars(r)["id"]
	weekID := db.WeekID(time.Now().UTC())

	result, err := c.App.Selections.Select(r.Context(), pollID, wallet, weekID)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, "poll not found")
		case errors.Is(err, selection.ErrNotNomination):
			respondError(w, http.StatusConflict, "poll is not accepting selections")
		case errors.Is(err, selection.ErrAlreadySelected):
			respondError(w, http.StatusConflict, "already selected this week")
		case errors.Is(err, selection.ErrSelectionLimit):
			respondError(w, http.StatusConflict, "weekly selection limit reached")
		default:
			c.App.Logger.Error("Failed to record selection",
				zap.String("pollId", pollID),
				zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to record selection")
		}
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// HandleDeselect withdraws one of the wallet's selections.
func (c *Controller) HandleDeselect(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	selectionID := mux.Vars(r)["id"]

	// Only the owner may withdraw it.
	sel, err := c.App.Stores.Selections.Get(r.Context(), selectionID)
	if err != nil || sel.Wallet != wallet {
		respondError(w, http.StatusNotFound, "selection not found")
		return
	}

	remaining, err := c.App.Selections.Deselect(r.Context(), selectionID)
	if err != nil {
		if errors.Is(err, selection.ErrSelectionMissing) {
			respondError(w, http.StatusNotFound, "selection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to remove selection")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"remainingSelections": remaining})
}

// HandleSelectionsList returns the wallet's selections for the current week
// plus how many it has left.
func (c *Controller) HandleSelectionsList(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	weekID := db.WeekID(time.Now().UTC())

	selections, err := c.App.Stores.Selections.ListForWallet(r.Context(), wallet, weekID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list selections")
		return
	}
	remaining, err := c.App.Selections.Remaining(r.Context(), wallet, weekID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count selections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"weekId":              weekID,
		"selections":          selections,
		"remainingSelections": remaining,
	})
}
