package order

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution"
	"github.com/ggonzalez94/defi-intents/internal/id"
)

// Approvals reads and grants ERC-20 spending allowances.
type Approvals interface {
	Allowance(ctx context.Context, read chainctx.ReadClient, token, owner, spender common.Address) (*big.Int, error)
	// Approve submits an approval and returns once it is included.
	Approve(ctx context.Context, exec chainctx.ExecutionClient, token, spender common.Address, amount *big.Int) (common.Hash, error)
}

// Balances reads what the owner holds of a token; native tokens use the account balance.
type Balances interface {
	Balance(ctx context.Context, read chainctx.ReadClient, token string, owner common.Address) (*big.Int, error)
}

// ERC20 implements Approvals and Balances with plain contract calls.
type ERC20 struct {
	abi abi.ABI
}

func NewERC20(erc20ABI string) (*ERC20, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ERC20{abi: parsed}, nil
}

func (e *ERC20) Allowance(ctx context.Context, read chainctx.ReadClient, token, owner, spender common.Address) (*big.Int, error) {
	return e.readUint(ctx, read, token, "allowance", owner, spender)
}

func (e *ERC20) Balance(ctx context.Context, read chainctx.ReadClient, token string, owner common.Address) (*big.Int, error) {
	if id.IsNativeAddress(token) {
		balance, err := read.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, clierr.WrapKind(clierr.KindClientUnavailable, "read native balance", err)
		}
		return balance, nil
	}
	return e.readUint(ctx, read, common.HexToAddress(token), "balanceOf", owner)
}

func (e *ERC20) Approve(ctx context.Context, exec chainctx.ExecutionClient, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := e.abi.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, clierr.Wrap(clierr.CodeInternal, "pack approve calldata", err)
	}
	receipt, err := exec.Send(ctx, execution.Call{
		Description: fmt.Sprintf("approve %s for %s", strings.ToLower(token.Hex()), strings.ToLower(spender.Hex())),
		To:          token,
		Data:        data,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

func (e *ERC20) readUint(ctx context.Context, read chainctx.ReadClient, token common.Address, method string, args ...any) (*big.Int, error) {
	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method+" call", err)
	}
	out, err := read.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, "call "+method, err)
	}
	decoded, err := e.abi.Unpack(method, out)
	if err != nil || len(decoded) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode "+method, err)
	}
	value, ok := decoded[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("unexpected %s result type %T", method, decoded[0]))
	}
	return value, nil
}
