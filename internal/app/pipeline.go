package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/intent"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/order"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
	"github.com/ggonzalez94/defi-intents/internal/wallet"
)

// pricedQuote is an unregistered quote plus what it takes to refresh it.
type pricedQuote struct {
	quote     *quotes.Quote
	refresher quotes.Refresher
	status    model.ProviderStatus
}

// priceIntent resolves the intent's tokens on their chains and asks the
// provider for its kind. in.ChainID must already be set.
func (s *runtimeState) priceIntent(ctx context.Context, in intent.Intent, sender string) (pricedQuote, error) {
	svc, err := s.services()
	if err != nil {
		return pricedQuote{}, err
	}
	if in.ChainID <= 0 {
		return pricedQuote{}, clierr.New(clierr.CodeUsage, "no chain given; name one with \"on <chain>\" or --chain")
	}
	provider, err := svc.provider(in.Kind)
	if err != nil {
		return pricedQuote{}, err
	}

	sell, err := svc.directory.Resolve(ctx, in.Sell, in.ChainID)
	if err != nil {
		return pricedQuote{}, err
	}
	buy, err := s.resolveBuySide(ctx, svc.directory, in)
	if err != nil {
		return pricedQuote{}, err
	}
	amount, err := id.ParseAmount(in.Amount, sell.Decimals)
	if err != nil {
		return pricedQuote{}, err
	}
	slippage := in.SlippageBps
	if slippage <= 0 {
		slippage = s.settings.SlippageBps
	}

	req := providers.QuoteRequest{
		ChainID:     in.ChainID,
		DestChainID: in.DestChainID,
		Sell:        sell,
		Buy:         buy,
		Amount:      amount,
		SlippageBps: providers.Slippage(slippage),
		Sender:      sender,
	}
	if req.DestChainID == 0 {
		req.DestChainID = req.ChainID
	}

	quoteCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()
	start := time.Now()
	q, err := provider.Quote(quoteCtx, req)
	status := model.ProviderStatus{Name: provider.Info().Name, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		s.lastProviders = []model.ProviderStatus{status}
		return pricedQuote{}, err
	}
	if q.SlippageBps == 0 {
		q.SlippageBps = req.SlippageBps
	}
	return pricedQuote{quote: q, refresher: providers.Refresher(provider, req), status: status}, nil
}

func (s *runtimeState) resolveBuySide(ctx context.Context, directory *tokens.Directory, in intent.Intent) (tokens.Descriptor, error) {
	switch in.Kind {
	case quotes.KindSwap:
		return directory.Resolve(ctx, in.Buy, in.ChainID)
	case quotes.KindBridge:
		if in.DestChainID <= 0 {
			return tokens.Descriptor{}, clierr.New(clierr.CodeUsage, "bridge destination chain is required")
		}
		if in.DestChainID == in.ChainID {
			return tokens.Descriptor{}, clierr.New(clierr.CodeUsage, "bridge source and destination chains must differ")
		}
		buy := in.Buy
		if buy == "" {
			buy = in.Sell
		}
		return directory.Resolve(ctx, buy, in.DestChainID)
	case quotes.KindStake:
		// The vault is its own share token; reading it on-chain also proves it is a contract.
		return directory.Resolve(ctx, in.Target, in.ChainID)
	default:
		return tokens.Descriptor{}, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("unsupported intent kind %q", in.Kind))
	}
}

// newMachine wires an order machine to w. Attempts are recorded in the order store.
func (s *runtimeState) newMachine(w *wallet.Local, reporter order.Reporter) (*order.Machine, error) {
	svc, err := s.services()
	if err != nil {
		return nil, err
	}
	store, err := svc.orderStore(s.settings)
	if err != nil {
		return nil, err
	}
	return order.NewMachine(order.Config{
		Registry:  svc.registry,
		Switcher:  chainctx.NewSwitcher(w, s.logger),
		Approvals: svc.erc20,
		Balances:  svc.erc20,
		Store:     store,
		Reporter:  reporter,
		Logger:    s.logger,
	}), nil
}

// attemptError turns a failed attempt into the error the CLI exits with.
func attemptError(a *order.Attempt) error {
	if a == nil || a.Succeeded() {
		return nil
	}
	var cause error
	if a.ErrorDetail != "" {
		cause = errors.New(a.ErrorDetail)
	}
	if a.ErrorKind != clierr.KindNone {
		return clierr.WrapKind(a.ErrorKind, fmt.Sprintf("order attempt %s failed", a.ID), cause)
	}
	return clierr.Wrap(clierr.CodeExecution, fmt.Sprintf("order attempt %s failed", a.ID), cause)
}

func quoteView(q *quotes.Quote, authoritative bool) model.QuoteView {
	v := model.QuoteView{
		QuoteID:       uint64(q.ID),
		Provider:      q.Provider,
		Kind:          string(q.Kind),
		ChainID:       q.ChainID,
		SellSymbol:    q.SellToken.Symbol,
		SellToken:     q.SellToken.Address,
		BuySymbol:     q.BuyToken.Symbol,
		BuyToken:      q.BuyToken.Address,
		InputAmount:   amountInfo(q.SellAmount, q.SellToken.Decimals),
		OutBeforeFees: amountInfo(q.BuyAmountBeforeFees, q.BuyToken.Decimals),
		OutAfterFees:  amountInfo(q.BuyAmountAfterFees, q.BuyToken.Decimals),
		SlippageBps:   q.SlippageBps,
		Spender:       q.Spender,
		Authoritative: authoritative,
		CreatedAt:     q.CreatedAt.UTC().Format(time.RFC3339),
	}
	if q.DestChainID != q.ChainID {
		v.DestChainID = q.DestChainID
	}
	if q.NetworkFee != nil {
		v.NetworkFeeWei = q.NetworkFee.String()
	}
	return v
}

func amountInfo(v *big.Int, decimals int) model.AmountInfo {
	if v == nil {
		return model.AmountInfo{AmountBaseUnits: "0", AmountDecimal: "0", Decimals: decimals}
	}
	return model.AmountInfo{
		AmountBaseUnits: v.String(),
		AmountDecimal:   id.FormatAmount(v, decimals),
		Decimals:        decimals,
	}
}

// summary is the one-line description shown before asking to execute.
func summary(q *quotes.Quote) string {
	out := fmt.Sprintf("%s %s %s for ~%s %s",
		q.Kind,
		id.FormatAmount(q.SellAmount, q.SellToken.Decimals), q.SellToken.Symbol,
		id.FormatAmount(q.BuyAmountAfterFees, q.BuyToken.Decimals), q.BuyToken.Symbol)
	chain := id.ChainByID(q.ChainID).Name
	if q.DestChainID != 0 && q.DestChainID != q.ChainID {
		return fmt.Sprintf("%s from %s to %s via %s", out, chain, id.ChainByID(q.DestChainID).Name, q.Provider)
	}
	return fmt.Sprintf("%s on %s via %s", out, chain, q.Provider)
}
