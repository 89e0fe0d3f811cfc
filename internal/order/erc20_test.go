package order

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/registry"
)

type erc20Reader struct {
	t       *testing.T
	e       *ERC20
	balance *big.Int
	allow   *big.Int
	native  *big.Int
	err     error
	calls   []string
}

func (r *erc20Reader) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	method, err := r.e.abi.MethodById(msg.Data[:4])
	if err != nil {
		r.t.Fatalf("unexpected selector: %x", msg.Data[:4])
	}
	r.calls = append(r.calls, method.Name)
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(r.balance)
	case "allowance":
		return method.Outputs.Pack(r.allow)
	}
	r.t.Fatalf("unexpected method %s", method.Name)
	return nil, nil
}

func (r *erc20Reader) BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error) {
	r.calls = append(r.calls, "eth_getBalance")
	return r.native, nil
}

func newTestERC20(t *testing.T) *ERC20 {
	t.Helper()
	e, err := NewERC20(registry.ERC20ABI)
	if err != nil {
		t.Fatalf("NewERC20 failed: %v", err)
	}
	return e
}

func TestERC20ReadsBalanceAndAllowance(t *testing.T) {
	e := newTestERC20(t)
	read := &erc20Reader{t: t, e: e, balance: big.NewInt(42_000_000), allow: big.NewInt(5), native: big.NewInt(1e18)}
	owner := common.HexToAddress(walletAddr)

	balance, err := e.Balance(context.Background(), read, arbUSDC.Address, owner)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance.Cmp(big.NewInt(42_000_000)) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}
	allowance, err := e.Allowance(context.Background(), read, common.HexToAddress(arbUSDC.Address), owner, common.HexToAddress(spenderHex))
	if err != nil {
		t.Fatalf("Allowance failed: %v", err)
	}
	if allowance.Int64() != 5 {
		t.Fatalf("unexpected allowance: %s", allowance)
	}

	native, err := e.Balance(context.Background(), read, "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE", owner)
	if err != nil {
		t.Fatalf("native Balance failed: %v", err)
	}
	if native.Cmp(big.NewInt(1e18)) != 0 {
		t.Fatalf("unexpected native balance: %s", native)
	}
	want := []string{"balanceOf", "allowance", "eth_getBalance"}
	for i, name := range want {
		if read.calls[i] != name {
			t.Fatalf("unexpected call order: %v", read.calls)
		}
	}
}

func TestERC20ReadFailureIsClientUnavailable(t *testing.T) {
	e := newTestERC20(t)
	read := &erc20Reader{t: t, e: e, err: errors.New("connection refused")}
	_, err := e.Balance(context.Background(), read, arbUSDC.Address, common.HexToAddress(walletAddr))
	if !clierr.IsKind(err, clierr.KindClientUnavailable) {
		t.Fatalf("expected client unavailable, got %v", err)
	}
}

func TestERC20ApproveSendsExactAmount(t *testing.T) {
	e := newTestERC20(t)
	exec := &fakeExecution{}
	token := common.HexToAddress(arbUSDC.Address)
	spender := common.HexToAddress(spenderHex)

	hash, err := e.Approve(context.Background(), exec, token, spender, big.NewInt(10_000_000))
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if hash == (common.Hash{}) {
		t.Fatal("expected approval tx hash")
	}
	if len(exec.signed) != 1 {
		t.Fatalf("expected one signed call, got %d", len(exec.signed))
	}
	call := exec.signed[0]
	if call.To != token {
		t.Fatalf("approval must target the token, got %s", call.To.Hex())
	}
	want, err := e.abi.Pack("approve", spender, big.NewInt(10_000_000))
	if err != nil {
		t.Fatalf("pack failed: %v", err)
	}
	if !bytes.Equal(call.Data, want) {
		t.Fatalf("unexpected approve calldata: %x", call.Data)
	}
}

func TestERC20ApproveSurfacesSignerRejection(t *testing.T) {
	e := newTestERC20(t)
	exec := &fakeExecution{signErr: clierr.NewKind(clierr.KindSigningRejected, "declined")}
	_, err := e.Approve(context.Background(), exec, common.HexToAddress(arbUSDC.Address), common.HexToAddress(spenderHex), big.NewInt(1))
	if !clierr.IsKind(err, clierr.KindSigningRejected) {
		t.Fatalf("expected signing rejected, got %v", err)
	}
}
