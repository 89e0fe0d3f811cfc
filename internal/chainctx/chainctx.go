package chainctx

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ggonzalez94/defi-intents/internal/execution"
)

// ExecutionClient signs and broadcasts transactions on one chain. *execution.Sender satisfies it.
type ExecutionClient interface {
	Address() common.Address
	ChainID() int64
	Sign(ctx context.Context, call execution.Call) (*types.Transaction, error)
	Submit(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	Send(ctx context.Context, call execution.Call) (*types.Receipt, error)
}

// ReadClient serves contract reads and balances on one chain.
type ReadClient interface {
	ethereum.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Clients is the pair of clients bound to a single chain.
type Clients struct {
	ChainID   int64
	Execution ExecutionClient
	Read      ReadClient
}

// Wallet is the connected wallet capability. Implementations report failures
// with enumerated kinds (UserRejectedSwitch, SwitchUnsupported, ClientUnavailable)
// rather than free-form messages.
type Wallet interface {
	// Address is the connected account, or "" when nothing is connected.
	Address() string
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	// Clients returns clients for the active chain. They must not be reused across switches.
	Clients(ctx context.Context) (Clients, error)
}
