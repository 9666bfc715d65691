package lifecycle

import (
	"time"

	"github.com/veilpoll/veilpoll/pkg/ledger"
)

// PromotedPoll is one nomination that graduated to voting.
type PromotedPoll struct {
	PollID   string       `json:"pollId"`
	LedgerID uint32       `json:"ledgerId"`
	TxRef    ledger.TxRef `json:"txRef"`
	Deadline time.Time    `json:"deadline"`
}

// PromoteOutput summarizes one promotion run.
type PromoteOutput struct {
	WeekID     int            `json:"weekId"`
	Candidates int            `json:"candidates"`
	Promoted   []PromotedPoll `json:"promoted"`
	Skipped    int            `json:"skipped"`
	Errors     []string       `json:"errors,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// RevealResult is one poll's outcome in an auto-reveal sweep.
type RevealResult struct {
	PollID string  `json:"pollId"`
	Winner int     `json:"winner"`
	Counts []int64 `json:"counts,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// AutoRevealOutput summarizes one auto-reveal sweep.
type AutoRevealOutput struct {
	Due      int            `json:"due"`
	Revealed int            `json:"revealed"`
	Failed   int            `json:"failed"`
	Results  []RevealResult `json:"results,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// ArchiveOutput summarizes one archival run.
type ArchiveOutput struct {
	Cutoff   time.Time     `json:"cutoff"`
	Archived int           `json:"archived"`
	PollIDs  []string      `json:"pollIds,omitempty"`
	Duration time.Duration `json:"duration"`
}
