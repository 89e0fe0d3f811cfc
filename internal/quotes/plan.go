package quotes

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/registry"
)

// Plan is the protocol-specific half of a quote: it turns the priced proposal
// into the call the wallet signs.
type Plan interface {
	Kind() Kind
	// CreateOrder refreshes final pricing against clients and returns the unsigned call.
	CreateOrder(ctx context.Context, clients chainctx.Clients) (execution.Call, error)
}

var (
	routerABI = mustABI(registry.UniswapV3RouterABI)
	vaultABI  = mustABI(registry.ERC4626ABI)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

type exactInputSingleParams struct {
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	Fee               *big.Int       `abi:"fee"`
	Recipient         common.Address `abi:"recipient"`
	AmountIn          *big.Int       `abi:"amountIn"`
	AmountOutMinimum  *big.Int       `abi:"amountOutMinimum"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}

// SwapPlan is a single-pool Uniswap V3 exact-input swap.
type SwapPlan struct {
	Router      common.Address
	TokenIn     common.Address
	TokenOut    common.Address
	Fee         uint32
	AmountIn    *big.Int
	SlippageBps int64
	// Requote re-prices the pool right before signing. Nil keeps QuotedOut.
	Requote   func(ctx context.Context, read chainctx.ReadClient) (*big.Int, error)
	QuotedOut *big.Int
}

func (p *SwapPlan) Kind() Kind { return KindSwap }

// CreateOrder bounds the swap by the confirmed QuotedOut less slippage. A requote
// below that bound fails the order instead of lowering the minimum.
func (p *SwapPlan) CreateOrder(ctx context.Context, clients chainctx.Clients) (execution.Call, error) {
	amountOut := p.QuotedOut
	if p.Requote != nil {
		fresh, err := p.Requote(ctx, clients.Read)
		if err != nil {
			return execution.Call{}, clierr.Wrap(clierr.CodeUnavailable, "refresh swap pricing", err)
		}
		amountOut = fresh
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return execution.Call{}, clierr.New(clierr.CodeUnavailable, "swap route returned no output")
	}
	floor := p.QuotedOut
	if floor == nil || floor.Sign() <= 0 {
		floor = amountOut
	}
	minOut := id.ApplySlippage(floor, p.SlippageBps)
	if amountOut.Cmp(minOut) < 0 {
		return execution.Call{}, clierr.NewKind(clierr.KindPriceMoved,
			fmt.Sprintf("swap now returns %s, below the confirmed minimum %s", amountOut, minOut))
	}
	params := exactInputSingleParams{
		TokenIn:           p.TokenIn,
		TokenOut:          p.TokenOut,
		Fee:               big.NewInt(int64(p.Fee)),
		Recipient:         clients.Execution.Address(),
		AmountIn:          p.AmountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	}
	data, err := routerABI.Pack("exactInputSingle", params)
	if err != nil {
		return execution.Call{}, clierr.Wrap(clierr.CodeInternal, "pack swap calldata", err)
	}
	return execution.Call{
		Description: fmt.Sprintf("swap via uniswap v3 fee tier %d", p.Fee),
		To:          p.Router,
		Data:        data,
	}, nil
}

// BridgeTransaction is a ready-to-sign transaction returned by a bridge aggregator.
type BridgeTransaction struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// BridgePlan carries an aggregator route. Refresh re-fetches the transaction so
// the signed payload reflects current pricing.
type BridgePlan struct {
	Tool        string
	DestChainID int64
	Tx          BridgeTransaction
	Refresh     func(ctx context.Context, from common.Address) (BridgeTransaction, error)
}

func (p *BridgePlan) Kind() Kind { return KindBridge }

func (p *BridgePlan) CreateOrder(ctx context.Context, clients chainctx.Clients) (execution.Call, error) {
	tx := p.Tx
	if p.Refresh != nil {
		fresh, err := p.Refresh(ctx, clients.Execution.Address())
		if err != nil {
			return execution.Call{}, clierr.Wrap(clierr.CodeUnavailable, "refresh bridge route", err)
		}
		tx = fresh
	}
	if tx.To == (common.Address{}) || len(tx.Data) == 0 {
		return execution.Call{}, clierr.New(clierr.CodeUnavailable, "bridge route has no transaction")
	}
	return execution.Call{
		Description: fmt.Sprintf("bridge via %s to chain %d", p.Tool, p.DestChainID),
		To:          tx.To,
		Data:        tx.Data,
		Value:       tx.Value,
	}, nil
}

// StakePlan deposits assets into an ERC-4626 vault for the signer.
type StakePlan struct {
	Vault  common.Address
	Assets *big.Int
}

func (p *StakePlan) Kind() Kind { return KindStake }

func (p *StakePlan) CreateOrder(ctx context.Context, clients chainctx.Clients) (execution.Call, error) {
	if p.Assets == nil || p.Assets.Sign() <= 0 {
		return execution.Call{}, clierr.New(clierr.CodeUsage, "deposit amount must be positive")
	}
	data, err := vaultABI.Pack("deposit", p.Assets, clients.Execution.Address())
	if err != nil {
		return execution.Call{}, clierr.Wrap(clierr.CodeInternal, "pack deposit calldata", err)
	}
	return execution.Call{
		Description: "deposit into vault " + strings.ToLower(p.Vault.Hex()),
		To:          p.Vault,
		Data:        data,
	}, nil
}
