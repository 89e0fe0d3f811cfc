package quotes

import (
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ggonzalez94/defi-intents/internal/tokens"
)

// Identity orders quotes by creation. Zero is never assigned.
type Identity uint64

type Kind string

const (
	KindSwap   Kind = "swap"
	KindBridge Kind = "bridge"
	KindStake  Kind = "stake"
)

// Quote is a priced proposal from a provider. Treat it as immutable once registered.
type Quote struct {
	ID          Identity
	Provider    string
	Kind        Kind
	ChainID     int64
	DestChainID int64
	SellToken   tokens.Descriptor
	BuyToken    tokens.Descriptor
	SellAmount  *big.Int

	BuyAmountBeforeFees *big.Int
	BuyAmountAfterFees  *big.Int
	// NetworkFee is the estimated gas cost in the source chain's native units (wei).
	NetworkFee  *big.Int
	SlippageBps int64
	// Spender is the contract that pulls SellToken; empty for native sells.
	Spender   string
	CreatedAt time.Time
	Plan      Plan
}

// NeedsApproval reports whether the sell side is an ERC-20 with a spender.
func (q *Quote) NeedsApproval() bool {
	return !q.SellToken.IsNative() && q.Spender != ""
}

// Clock hands out strictly increasing identities.
type Clock struct {
	last atomic.Uint64
	now  func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Next() Identity {
	return Identity(c.last.Add(1))
}

// Stamp assigns the next identity and creation time to q.
func (c *Clock) Stamp(q *Quote) *Quote {
	q.ID = c.Next()
	if q.CreatedAt.IsZero() {
		now := time.Now
		if c.now != nil {
			now = c.now
		}
		q.CreatedAt = now().UTC()
	}
	return q
}
