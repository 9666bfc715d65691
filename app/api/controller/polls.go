package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/veilpoll/veilpoll/pkg/db"
	"github.com/veilpoll/veilpoll/pkg/ledger"
	"go.uber.org/zap"
)

// minQuestionLength keeps throwaway one-word proposals out of the nomination
// pool; the ledger program only caps the maximum.
const minQuestionLength = 10

type createPollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// HandlePollCreate records a nomination-stage proposal. Nothing touches the
// ledger here; the proposal only reaches the ledger if promotion picks it.
func (c *Controller) HandlePollCreate(w http.ResponseWriter, r *http.Request) {
	wallet := c.wallet(r)

	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	// Same bounds the ledger program enforces at promotion time; rejecting
	// early keeps unpromotable proposals out of the nomination pool.
	if err := ledger.ValidateProposal(req.Question, req.Options); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(strings.TrimSpace(req.Question)) < minQuestionLength {
		respondError(w, http.StatusBadRequest, "question too short")
		return
	}

	now := time.Now().UTC()
	poll := &db.Poll{
		Creator:   wallet,
		Question:  req.Question,
		Options:   req.Options,
		Status:    db.StatusNomination,
		Section:   db.StatusNomination,
		WeekID:    db.WeekID(now),
		CreatedAt: now,
	}
	if err := c.App.Stores.Polls.CreateProposal(r.Context(), poll); err != nil {
		c.App.Logger.Error("Failed to create proposal", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create poll")
		return
	}

	if err := c.App.Stores.Points.Award(r.Context(), &db.PointEntry{
		Wallet:      wallet,
		Amount:      db.PointsPollCreated,
		Reason:      db.ReasonPollCreated,
		ReferenceID: &poll.ID,
	}); err != nil {
		c.App.Logger.Warn("Failed to award creation points",
			zap.String("wallet", wallet),
			zap.Error(err))
	}

	respondJSON(w, http.StatusCreated, poll)
}

// HandlePollsList lists polls, filterable by section, creator and week.
func (c *Controller) HandlePollsList(w http.ResponseWriter, r *http.Request) {
	q := db.PollQuery{
		Section: r.URL.Query().Get("section"),
		Creator: r.URL.Query().Get("creator"),
	}
	if v := r.URL.Query().Get("week"); v != "" {
		q.WeekID, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		q.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		q.Offset, _ = strconv.Atoi(v)
	}
	q.SortBySelections = r.URL.Query().Get("sort") == "selections"

	polls, err := c.App.Stores.Polls.List(r.Context(), q)
	if err != nil {
		c.App.Logger.Error("Failed to list polls", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list polls")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"polls": polls})
}

// HandlePollDetail returns one poll.
func (c *Controller) HandlePollDetail(w http.ResponseWriter, r *http.Request) {
	poll, err := c.App.Stores.Polls.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "poll not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	respondJSON(w, http.StatusOK, poll)
}

// HandleResults returns the decrypted tally of a completed poll. Counts exist
// only after reveal; before that the tally is ciphertext on the ledger.
func (c *Controller) HandleResults(w http.ResponseWriter, r *http.Request) {
	poll, err := c.App.Stores.Polls.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "poll not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load poll")
		return
	}
	if poll.RevealedAt == nil {
		respondError(w, http.StatusConflict, "results not revealed yet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"pollId":     poll.ID,
		"counts":     poll.VoteCounts,
		"winner":     poll.Winner,
		"revealedAt": poll.RevealedAt,
		"txRef":      poll.RevealTxRef,
	})
}
