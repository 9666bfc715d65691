package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"github.com/veilpoll/veilpoll/pkg/vote"
	"go.uber.org/zap"
)

type castVoteRequest struct {
	Choice int `json:"choice"`
}

// HandleVote encrypts and submits the wallet's choice on a voting-stage poll.
// The response carries the submission reference, not the tally: the choice
// stays ciphertext until the poll is revealed.
func (c *Controller) HandleVote(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	pollID := mux.Vars(r)["id"]

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, ok := c.App.Sessions.Get(wallet)
	if !ok {
		respondError(w, http.StatusUnauthorized, "no active encryption session; reconnect wallet")
		return
	}

	poll, err := c.App.Stores.Polls.Get(r.Context(), pollID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "poll not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	if poll.Status != db.StatusVoting {
		respondError(w, http.StatusConflict, "poll is not open for voting")
		return
	}

	txRef, err := c.App.Pipeline.CastVote(r.Context(), session, poll, req.Choice)
	if err != nil {
		var subErr *ledger.SubmissionError
		switch {
		case errors.Is(err, vote.ErrAlreadyVoted):
			respondError(w, http.StatusConflict, "already voted on this poll")
		case errors.Is(err, vote.ErrInvalidOption), errors.Is(err, ledger.ErrValidation):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &subErr):
			// Surface the program's diagnostics; the duplicate-vote rejection
			// from the ledger lands here too.
			respondError(w, http.StatusUnprocessableEntity, subErr.Message)
		default:
			c.App.Logger.Error("Vote submission failed",
				zap.String("pollId", pollID),
				zap.Error(err))
			respondError(w, http.StatusBadGateway, "vote submission failed")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"txRef":  txRef,
		"status": vote.StatusConfirmed,
	})
}

// HandleVoteStatus reports the live submission status for this wallet/poll
// plus the durable participation flag. The in-memory status resets on
// restart; voted comes from the store and survives.
func (c *Controller) HandleVoteStatus(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	pollID := mux.Vars(r)["id"]

	voted, err := c.App.Stores.Votes.HasVoted(r.Context(), pollID, wallet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check participation")
		return
	}
	status, _ := c.App.Pipeline.Status(pollID, wallet)
	respondJSON(w, http.StatusOK, map[string]any{
		"voted":  voted,
		"status": status,
	})
}

// HandleVoteHistory lists the wallet's participation records. Records mark
// that a vote happened, never what it was.
func (c *Controller) HandleVoteHistory(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)
	records, err := c.App.Stores.Votes.HistoryForWallet(r.Context(), wallet)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"votes": records})
}
