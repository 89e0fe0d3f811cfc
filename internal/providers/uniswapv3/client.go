package uniswapv3

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/registry"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
)

const name = "uniswap-v3"

var (
	feeTiers = []uint32{100, 500, 3000, 10000}

	quoterABI = mustABI(registry.UniswapV3QuoterV2ABI)
)

type gasPricer interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

type Client struct {
	caller tokens.CallerFunc
	now    func() time.Time
}

func New(caller tokens.CallerFunc) *Client {
	return &Client{caller: caller, now: time.Now}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:        name,
		Type:        "swap",
		RequiresKey: false,
		Capabilities: []string{
			"swap.quote",
			"swap.execute",
		},
	}
}

func (c *Client) Kind() quotes.Kind { return quotes.KindSwap }

type quoteExactInputSingleParams struct {
	TokenIn           common.Address `abi:"tokenIn"`
	TokenOut          common.Address `abi:"tokenOut"`
	AmountIn          *big.Int       `abi:"amountIn"`
	Fee               *big.Int       `abi:"fee"`
	SqrtPriceLimitX96 *big.Int       `abi:"sqrtPriceLimitX96"`
}

func (c *Client) Quote(ctx context.Context, req providers.QuoteRequest) (*quotes.Quote, error) {
	deployment, ok := registry.UniswapV3(req.ChainID)
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("uniswap v3 is not deployed on chain %d", req.ChainID))
	}
	if req.Sell.IsNative() || req.Buy.IsNative() {
		return nil, clierr.New(clierr.CodeUnsupported, "uniswap v3 pools trade wrapped tokens; use the wrapped symbol")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "swap amount must be positive")
	}
	if strings.EqualFold(req.Sell.Address, req.Buy.Address) {
		return nil, clierr.New(clierr.CodeUsage, "cannot swap a token for itself")
	}
	client, err := c.caller(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}

	quoter := common.HexToAddress(deployment.QuoterV2)
	tokenIn := common.HexToAddress(req.Sell.Address)
	tokenOut := common.HexToAddress(req.Buy.Address)
	amountIn := new(big.Int).Set(req.Amount)
	quotedOut, bestFee, gasEstimate, err := quoteBestFee(ctx, client, quoter, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	slippage := providers.Slippage(req.SlippageBps)

	plan := &quotes.SwapPlan{
		Router:      common.HexToAddress(deployment.Router),
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Fee:         bestFee,
		AmountIn:    amountIn,
		SlippageBps: slippage,
		QuotedOut:   quotedOut,
		Requote: func(ctx context.Context, read chainctx.ReadClient) (*big.Int, error) {
			out, _, err := quoteFee(ctx, read, quoter, tokenIn, tokenOut, amountIn, bestFee)
			return out, err
		},
	}
	return &quotes.Quote{
		Provider:            name,
		Kind:                quotes.KindSwap,
		ChainID:             req.ChainID,
		DestChainID:         req.ChainID,
		SellToken:           req.Sell,
		BuyToken:            req.Buy,
		SellAmount:          amountIn,
		BuyAmountBeforeFees: grossOfPoolFee(quotedOut, bestFee),
		BuyAmountAfterFees:  quotedOut,
		NetworkFee:          networkFee(ctx, client, gasEstimate),
		SlippageBps:         slippage,
		Spender:             strings.ToLower(deployment.Router),
		CreatedAt:           c.now().UTC(),
		Plan:                plan,
	}, nil
}

func quoteBestFee(ctx context.Context, client ethereum.ContractCaller, quoter, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, uint32, *big.Int, error) {
	var (
		bestOut *big.Int
		bestGas *big.Int
		bestFee uint32
	)
	for _, fee := range feeTiers {
		amountOut, gasEstimate, err := quoteFee(ctx, client, quoter, tokenIn, tokenOut, amountIn, fee)
		if err != nil {
			continue
		}
		if bestOut == nil || amountOut.Cmp(bestOut) > 0 || (amountOut.Cmp(bestOut) == 0 && gasEstimate.Cmp(bestGas) < 0) {
			bestOut = amountOut
			bestGas = gasEstimate
			bestFee = fee
		}
	}
	if bestOut == nil {
		return nil, 0, nil, clierr.New(clierr.CodeUnavailable, "uniswap v3 quote unavailable for token pair")
	}
	return bestOut, bestFee, bestGas, nil
}

// quoteFee prices a single pool. A pool with no liquidity reverts or returns zero.
func quoteFee(ctx context.Context, client ethereum.ContractCaller, quoter, tokenIn, tokenOut common.Address, amountIn *big.Int, fee uint32) (*big.Int, *big.Int, error) {
	callData, err := quoterABI.Pack("quoteExactInputSingle", quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeInternal, "pack quoter calldata", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: callData}, nil)
	if err != nil {
		return nil, nil, clierr.WrapKind(clierr.KindClientUnavailable, fmt.Sprintf("quote fee tier %d", fee), err)
	}
	decoded, err := quoterABI.Unpack("quoteExactInputSingle", out)
	if err != nil || len(decoded) < 4 {
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "decode quoter output", err)
	}
	amountOut, ok := decoded[0].(*big.Int)
	if !ok || amountOut == nil || amountOut.Sign() <= 0 {
		return nil, nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("no liquidity in fee tier %d", fee))
	}
	gasEstimate, ok := decoded[3].(*big.Int)
	if !ok || gasEstimate == nil {
		gasEstimate = big.NewInt(0)
	}
	return amountOut, gasEstimate, nil
}

// grossOfPoolFee reverses the pool fee (hundredths of a bip) taken from the output.
func grossOfPoolFee(out *big.Int, fee uint32) *big.Int {
	gross := new(big.Int).Mul(out, big.NewInt(1_000_000))
	return gross.Quo(gross, big.NewInt(int64(1_000_000-fee)))
}

func networkFee(ctx context.Context, client ethereum.ContractCaller, gasEstimate *big.Int) *big.Int {
	pricer, ok := client.(gasPricer)
	if !ok || gasEstimate == nil || gasEstimate.Sign() == 0 {
		return nil
	}
	price, err := pricer.SuggestGasPrice(ctx)
	if err != nil {
		return nil
	}
	return new(big.Int).Mul(price, gasEstimate)
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
