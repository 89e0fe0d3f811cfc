package providers

import (
	"context"
	"math/big"

	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
)

const DefaultSlippageBps int64 = 50

type Provider interface {
	Info() model.ProviderInfo
}

// QuoteRequest prices one intent. For stakes Buy is the vault share token.
type QuoteRequest struct {
	ChainID     int64
	DestChainID int64
	Sell        tokens.Descriptor
	Buy         tokens.Descriptor
	Amount      *big.Int
	SlippageBps int64
	// Sender is the connected wallet, when known. Providers that need a
	// sender for routing fall back to a placeholder.
	Sender string
}

type QuoteProvider interface {
	Provider
	Kind() quotes.Kind
	// Quote returns an unstamped quote; the session manager assigns its identity.
	Quote(ctx context.Context, req QuoteRequest) (*quotes.Quote, error)
}

// Refresher re-requests req from p for every refresh of a session.
func Refresher(p QuoteProvider, req QuoteRequest) quotes.Refresher {
	return quotes.RefreshFunc(func(ctx context.Context, prev *quotes.Quote) (*quotes.Quote, error) {
		return p.Quote(ctx, req)
	})
}

func Slippage(bps int64) int64 {
	if bps <= 0 {
		return DefaultSlippageBps
	}
	return bps
}
