package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
)

var (
	baseUSDC   = tokens.Descriptor{ChainID: 8453, Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Symbol: "USDC", Name: "USD Coin", Decimals: 6}
	vaultShare = tokens.Descriptor{ChainID: 8453, Address: "0x00000000000000000000000000000000000000f1", Symbol: "vUSDC", Name: "Vault USDC", Decimals: 18}
)

type fakeVault struct {
	t        *testing.T
	asset    common.Address
	rate     int64
	max      *big.Int
	err      error
	methods  []string
	receiver common.Address
}

func (f *fakeVault) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if *msg.To != common.HexToAddress(vaultShare.Address) {
		f.t.Fatalf("unexpected call target %s", msg.To.Hex())
	}
	method, err := vaultABI.MethodById(msg.Data[:4])
	if err != nil {
		f.t.Fatalf("unexpected selector %x", msg.Data[:4])
	}
	f.methods = append(f.methods, method.Name)
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		f.t.Fatalf("unpack %s args: %v", method.Name, err)
	}
	switch method.Name {
	case "asset":
		return method.Outputs.Pack(f.asset)
	case "maxDeposit":
		f.receiver = args[0].(common.Address)
		return method.Outputs.Pack(f.max)
	case "previewDeposit":
		assets := args[0].(*big.Int)
		return method.Outputs.Pack(new(big.Int).Mul(assets, big.NewInt(f.rate)))
	}
	f.t.Fatalf("unexpected method %s", method.Name)
	return nil, nil
}

func clientFor(v *fakeVault) *Client {
	return New(func(ctx context.Context, chainID int64) (ethereum.ContractCaller, error) {
		return v, nil
	})
}

func TestQuoteStake(t *testing.T) {
	v := &fakeVault{t: t, asset: common.HexToAddress(baseUSDC.Address), rate: 1_000_000_000_000, max: big.NewInt(1 << 62)}
	c := clientFor(v)

	q, err := c.Quote(context.Background(), providers.QuoteRequest{
		ChainID: 8453, Sell: baseUSDC, Buy: vaultShare, Amount: big.NewInt(100_000_000),
		Sender: "0x00000000000000000000000000000000000000AA",
	})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if q.Kind != quotes.KindStake || q.Provider != "erc4626" {
		t.Fatalf("unexpected quote header: %+v", q)
	}
	if q.BuyAmountAfterFees.String() != "100000000000000000000" {
		t.Fatalf("unexpected shares: %s", q.BuyAmountAfterFees)
	}
	if q.Spender != vaultShare.Address {
		t.Fatalf("expected the vault as spender, got %s", q.Spender)
	}
	plan, ok := q.Plan.(*quotes.StakePlan)
	if !ok || plan.Vault != common.HexToAddress(vaultShare.Address) || plan.Assets.Int64() != 100_000_000 {
		t.Fatalf("unexpected plan: %+v", q.Plan)
	}
	if v.receiver != common.HexToAddress("0xAA") {
		t.Fatalf("expected deposit limit checked for the sender, got %s", v.receiver.Hex())
	}
}

func TestQuoteStakeSkipsLimitWithoutSender(t *testing.T) {
	v := &fakeVault{t: t, asset: common.HexToAddress(baseUSDC.Address), rate: 1}
	if _, err := clientFor(v).Quote(context.Background(), providers.QuoteRequest{
		ChainID: 8453, Sell: baseUSDC, Buy: vaultShare, Amount: big.NewInt(5),
	}); err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	for _, m := range v.methods {
		if m == "maxDeposit" {
			t.Fatal("did not expect maxDeposit without a sender")
		}
	}
}

func TestQuoteStakeRejections(t *testing.T) {
	tests := []struct {
		name  string
		vault *fakeVault
		req   providers.QuoteRequest
		check func(error) bool
	}{
		{
			name:  "asset mismatch",
			vault: &fakeVault{asset: common.HexToAddress("0x01"), rate: 1},
			req:   providers.QuoteRequest{ChainID: 8453, Sell: baseUSDC, Buy: vaultShare, Amount: big.NewInt(1)},
			check: func(err error) bool { return clierr.ExitCode(err) == int(clierr.CodeUsage) },
		},
		{
			name:  "deposit cap",
			vault: &fakeVault{asset: common.HexToAddress(baseUSDC.Address), rate: 1, max: big.NewInt(10)},
			req:   providers.QuoteRequest{ChainID: 8453, Sell: baseUSDC, Buy: vaultShare, Amount: big.NewInt(11), Sender: "0x00000000000000000000000000000000000000AA"},
			check: func(err error) bool { return clierr.ExitCode(err) == int(clierr.CodeUnsupported) },
		},
		{
			name:  "rpc failure",
			vault: &fakeVault{err: errors.New("connection refused")},
			req:   providers.QuoteRequest{ChainID: 8453, Sell: baseUSDC, Buy: vaultShare, Amount: big.NewInt(1)},
			check: func(err error) bool { return clierr.IsKind(err, clierr.KindClientUnavailable) },
		},
		{
			name:  "not a vault address",
			vault: &fakeVault{},
			req:   providers.QuoteRequest{ChainID: 8453, Sell: baseUSDC, Buy: tokens.Descriptor{Address: "0xnot"}, Amount: big.NewInt(1)},
			check: func(err error) bool { return clierr.IsKind(err, clierr.KindInvalidAddressFormat) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.vault.t = t
			_, err := clientFor(tt.vault).Quote(context.Background(), tt.req)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
