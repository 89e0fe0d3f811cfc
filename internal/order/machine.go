package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/metrics"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
)

// Switcher moves the wallet onto the chain a quote executes on.
type Switcher interface {
	EnsureOnChain(ctx context.Context, targetChainID int64, walletAddress string) (chainctx.Clients, error)
}

type Config struct {
	Registry  *quotes.Registry
	Switcher  Switcher
	Approvals Approvals
	Balances  Balances
	// Store is optional; when set every terminal attempt is recorded.
	Store    *Store
	Reporter Reporter
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Request is a user-confirmed order against a displayed quote.
type Request struct {
	Quote  *quotes.Quote
	Wallet string
	// Session, when set, is paused while the attempt is in flight.
	Session Suspender
}

// Machine drives attempts through
// idle → checking-approval → approving? → creating → signing → submitting → success | error.
type Machine struct {
	registry  *quotes.Registry
	switcher  Switcher
	approvals Approvals
	balances  Balances
	store     *Store
	reporter  Reporter
	log       *logrus.Entry
	now       func() time.Time
}

func NewMachine(cfg Config) *Machine {
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		registry:  cfg.Registry,
		switcher:  cfg.Switcher,
		approvals: cfg.Approvals,
		balances:  cfg.Balances,
		store:     cfg.Store,
		reporter:  cfg.Reporter,
		log:       cfg.Logger.WithField("component", "order"),
		now:       cfg.Now,
	}
}

// Run executes req as a new attempt. The returned attempt is always terminal.
func (m *Machine) Run(ctx context.Context, req Request) *Attempt {
	return m.run(ctx, req, "")
}

// Retry starts a fresh attempt after a failed one. It re-applies the entry
// guard and restarts at checking-approval.
func (m *Machine) Retry(ctx context.Context, prev *Attempt, req Request) (*Attempt, error) {
	if prev == nil || prev.Status != StateError {
		return nil, clierr.New(clierr.CodeUsage, "only failed attempts can be retried")
	}
	return m.run(ctx, req, prev.ID), nil
}

func (m *Machine) run(ctx context.Context, req Request, previousID string) *Attempt {
	a := &Attempt{
		ID:         uuid.NewString(),
		PreviousID: previousID,
		Wallet:     strings.TrimSpace(req.Wallet),
		StartedAt:  m.now().UTC(),
	}
	q := req.Quote
	if q != nil {
		a.QuoteID = q.ID
		a.Provider = q.Provider
		a.Kind = q.Kind
		a.ChainID = q.ChainID
	}
	a.Transitions = append(a.Transitions, Transition{State: StateIdle, At: a.StartedAt})
	a.Status = StateIdle
	log := m.log.WithFields(logrus.Fields{"attempt_id": a.ID, "quote_id": uint64(a.QuoteID)})

	m.reporter.OrderStarted(a)
	defer func() {
		a.FinishedAt = m.now().UTC()
		m.observe(a)
		m.record(ctx, req, a, log)
		m.reporter.OrderFinished(a)
	}()

	// Refresh is suspended before authority is checked so a refresh cannot
	// supersede the quote between the check and execution.
	if req.Session != nil {
		req.Session.Pause()
		defer func() {
			if a.Succeeded() {
				req.Session.Close()
			} else {
				req.Session.Resume()
			}
		}()
	}

	if err := m.guard(q, a.Wallet); err != nil {
		m.fail(a, err)
		log.WithField("kind", a.ErrorKind).Info("order refused")
		return a
	}

	m.transition(a, StateCheckingApproval)
	clients, err := m.switcher.EnsureOnChain(ctx, q.ChainID, a.Wallet)
	if err != nil {
		m.fail(a, err)
		return a
	}
	if err := m.checkApproval(ctx, a, q, clients); err != nil {
		m.fail(a, err)
		return a
	}

	result, err := quotes.Execute(ctx, q, clients, func(stage quotes.Stage) {
		m.transition(a, State(stage))
	})
	if result.TxHash != "" {
		a.TxHash = result.TxHash
	}
	if err != nil {
		if a.Status == StateSubmitting && clierr.KindOf(err) == clierr.KindNone {
			err = clierr.WrapKind(clierr.KindSubmissionFailed, "submit order", err)
		}
		m.fail(a, err)
		log.WithError(err).WithField("state", a.Transitions[len(a.Transitions)-1].State).Warn("order failed")
		return a
	}

	a.OrderID = result.OrderID
	a.Message = fmt.Sprintf("Your %s order was confirmed in transaction %s.", q.Kind, result.TxHash)
	m.transition(a, StateSuccess)
	log.WithFields(logrus.Fields{"order_id": a.OrderID, "tx_hash": a.TxHash}).Info("order confirmed")
	return a
}

func (m *Machine) guard(q *quotes.Quote, wallet string) error {
	if q == nil {
		return clierr.New(clierr.CodeUsage, "no quote selected")
	}
	if !m.registry.IsAuthoritative(q.ID) {
		return clierr.NewKind(clierr.KindQuoteExpired, fmt.Sprintf("quote %d is no longer the latest", q.ID))
	}
	if wallet == "" {
		return clierr.NewKind(clierr.KindWalletNotConnected, "wallet address is required")
	}
	if q.SellAmount == nil || q.SellAmount.Sign() <= 0 || q.Plan == nil {
		return clierr.New(clierr.CodeUsage, "quote is missing an amount or execution plan")
	}
	if !id.IsEVMAddress(wallet) {
		return clierr.NewKind(clierr.KindWalletNotConnected, fmt.Sprintf("invalid wallet address %q", wallet))
	}
	return nil
}

func (m *Machine) checkApproval(ctx context.Context, a *Attempt, q *quotes.Quote, clients chainctx.Clients) error {
	owner := common.HexToAddress(a.Wallet)
	balance, err := m.balances.Balance(ctx, clients.Read, q.SellToken.Address, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(q.SellAmount) < 0 {
		return clierr.NewKind(clierr.KindInsufficientBalance, fmt.Sprintf("balance %s %s is below %s",
			id.FormatAmount(balance, q.SellToken.Decimals), q.SellToken.Symbol, id.FormatAmount(q.SellAmount, q.SellToken.Decimals)))
	}
	if !q.NeedsApproval() {
		return nil
	}

	token := common.HexToAddress(q.SellToken.Address)
	spender := common.HexToAddress(q.Spender)
	allowance, err := m.approvals.Allowance(ctx, clients.Read, token, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(q.SellAmount) >= 0 {
		return nil
	}

	m.transition(a, StateApproving)
	hash, err := m.approvals.Approve(ctx, clients.Execution, token, spender, q.SellAmount)
	if err != nil {
		if clierr.IsKind(err, clierr.KindClientUnavailable) {
			return err
		}
		return clierr.WrapKind(clierr.KindApprovalRejected, "approve "+q.SellToken.Symbol, err)
	}
	a.ApprovalTxHash = hash.Hex()
	return nil
}

func (m *Machine) transition(a *Attempt, to State) {
	a.Status = to
	a.Transitions = append(a.Transitions, Transition{State: to, At: m.now().UTC()})
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	m.reporter.OrderTransitioned(a, to)
}

func (m *Machine) fail(a *Attempt, err error) {
	a.ErrorKind = clierr.KindOf(err)
	a.ErrorDetail = err.Error()
	a.Message = clierr.UserMessage(err)
	m.transition(a, StateError)
}

func (m *Machine) observe(a *Attempt) {
	metrics.OrderOutcomes.WithLabelValues(string(a.Status), string(a.ErrorKind)).Inc()
	if !a.StartedAt.IsZero() {
		metrics.OrderDuration.WithLabelValues(string(a.Kind)).Observe(a.FinishedAt.Sub(a.StartedAt).Seconds())
	}
}

func (m *Machine) record(ctx context.Context, req Request, a *Attempt, log *logrus.Entry) {
	if m.store == nil {
		return
	}
	rec := Record{Attempt: *a}
	if q := req.Quote; q != nil {
		rec.DestChainID = q.DestChainID
		rec.SellSymbol = q.SellToken.Symbol
		rec.SellToken = q.SellToken.Address
		rec.BuySymbol = q.BuyToken.Symbol
		rec.BuyToken = q.BuyToken.Address
		if q.SellAmount != nil {
			rec.SellAmount = id.FormatAmount(q.SellAmount, q.SellToken.Decimals)
		}
		if q.BuyAmountAfterFees != nil {
			rec.BuyAmount = id.FormatAmount(q.BuyAmountAfterFees, q.BuyToken.Decimals)
		}
	}
	if err := m.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		log.WithError(err).Warn("record order outcome")
	}
}
