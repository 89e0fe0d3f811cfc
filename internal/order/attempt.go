package order

import (
	"time"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
)

type State string

const (
	StateIdle             State = "idle"
	StateCheckingApproval State = "checking-approval"
	StateApproving        State = "approving"
	StateCreating         State = "creating"
	StateSigning          State = "signing"
	StateSubmitting       State = "submitting"
	StateSuccess          State = "success"
	StateError            State = "error"
)

func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// Attempt is one run of the order pipeline against a quote. Attempts are never
// resumed; a retry is a new attempt that links back through PreviousID.
type Attempt struct {
	ID             string          `json:"attempt_id"`
	PreviousID     string          `json:"previous_attempt_id,omitempty"`
	QuoteID        quotes.Identity `json:"quote_id"`
	Provider       string          `json:"provider,omitempty"`
	Kind           quotes.Kind     `json:"kind,omitempty"`
	ChainID        int64           `json:"chain_id,omitempty"`
	Wallet         string          `json:"wallet,omitempty"`
	Status         State           `json:"status"`
	ErrorKind      clierr.Kind     `json:"error_kind,omitempty"`
	ErrorDetail    string          `json:"error_detail,omitempty"`
	Message        string          `json:"message"`
	OrderID        string          `json:"order_id,omitempty"`
	TxHash         string          `json:"tx_hash,omitempty"`
	ApprovalTxHash string          `json:"approval_tx_hash,omitempty"`
	Transitions    []Transition    `json:"transitions"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

func (a *Attempt) Succeeded() bool { return a.Status == StateSuccess }

// Reporter is told about every attempt, including ones refused at the entry
// guard, so dependent views can suspend and resume their timers.
type Reporter interface {
	OrderStarted(a *Attempt)
	OrderTransitioned(a *Attempt, to State)
	OrderFinished(a *Attempt)
}

type nopReporter struct{}

func (nopReporter) OrderStarted(*Attempt)             {}
func (nopReporter) OrderTransitioned(*Attempt, State) {}
func (nopReporter) OrderFinished(*Attempt)            {}

// Suspender controls the refresh loop of the quote being executed. *quotes.Session implements it.
type Suspender interface {
	Pause()
	Resume()
	Close()
}
