package vault

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/registry"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
)

const name = "erc4626"

var vaultABI = mustABI(registry.ERC4626ABI)

// Client stakes into ERC-4626 vaults. The request's Buy token is the vault itself.
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
		Type:        "stake",
		RequiresKey: false,
		Capabilities: []string{
			"stake.quote",
			"stake.execute",
		},
	}
}

func (c *Client) Kind() quotes.Kind { return quotes.KindStake }

func (c *Client) Quote(ctx context.Context, req providers.QuoteRequest) (*quotes.Quote, error) {
	if !id.IsEVMAddress(req.Buy.Address) || req.Buy.IsNative() {
		return nil, clierr.NewKind(clierr.KindInvalidAddressFormat, "stake target must be a vault contract address")
	}
	if req.Sell.IsNative() {
		return nil, clierr.New(clierr.CodeUnsupported, "vault deposits take the ERC-20 asset, not the native token")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "stake amount must be positive")
	}
	client, err := c.caller(ctx, req.ChainID)
	if err != nil {
		return nil, err
	}
	vaultAddr := common.HexToAddress(req.Buy.Address)

	asset, err := callAddress(ctx, client, vaultAddr, "asset")
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(asset.Hex(), req.Sell.Address) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("vault %s accepts %s, not %s", req.Buy.Symbol, strings.ToLower(asset.Hex()), req.Sell.Symbol))
	}
	if common.IsHexAddress(req.Sender) {
		limit, err := callUint(ctx, client, vaultAddr, "maxDeposit", common.HexToAddress(req.Sender))
		if err != nil {
			return nil, err
		}
		if limit.Cmp(req.Amount) < 0 {
			return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("vault accepts at most %s %s right now", id.FormatAmount(limit, req.Sell.Decimals), req.Sell.Symbol))
		}
	}
	shares, err := callUint(ctx, client, vaultAddr, "previewDeposit", req.Amount)
	if err != nil {
		return nil, err
	}
	if shares.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "vault preview returned no shares")
	}

	amount := new(big.Int).Set(req.Amount)
	return &quotes.Quote{
		Provider:            name,
		Kind:                quotes.KindStake,
		ChainID:             req.ChainID,
		DestChainID:         req.ChainID,
		SellToken:           req.Sell,
		BuyToken:            req.Buy,
		SellAmount:          amount,
		BuyAmountBeforeFees: shares,
		BuyAmountAfterFees:  shares,
		Spender:             strings.ToLower(vaultAddr.Hex()),
		CreatedAt:           c.now().UTC(),
		Plan:                &quotes.StakePlan{Vault: vaultAddr, Assets: amount},
	}, nil
}

func call(ctx context.Context, client ethereum.ContractCaller, vault common.Address, method string, args ...any) ([]any, error) {
	data, err := vaultABI.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method+" call", err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: data}, nil)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, "call vault "+method, err)
	}
	decoded, err := vaultABI.Unpack(method, out)
	if err != nil || len(decoded) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnsupported, "contract is not an ERC-4626 vault", err)
	}
	return decoded, nil
}

func callUint(ctx context.Context, client ethereum.ContractCaller, vault common.Address, method string, args ...any) (*big.Int, error) {
	decoded, err := call(ctx, client, vault, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := decoded[0].(*big.Int)
	if !ok || v == nil {
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("unexpected %s result type %T", method, decoded[0]))
	}
	return v, nil
}

func callAddress(ctx context.Context, client ethereum.ContractCaller, vault common.Address, method string) (common.Address, error) {
	decoded, err := call(ctx, client, vault, method)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := decoded[0].(common.Address)
	if !ok {
		return common.Address{}, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("unexpected %s result type %T", method, decoded[0]))
	}
	return v, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
