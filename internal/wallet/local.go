package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution"
	"github.com/ggonzalez94/defi-intents/internal/execution/signer"
	"github.com/ggonzalez94/defi-intents/internal/id"
)

type Config struct {
	Signer signer.Signer
	// ChainID is the network selected at startup.
	ChainID int64
	Pool    *chainctx.Pool
	// Fixed pins the wallet to a single RPC endpoint; switch requests fail with SwitchUnsupported.
	Fixed bool
	// Confirm approves switch requests. Nil approves every request.
	Confirm signer.Confirmer
	Sender  execution.Options
	Logger  *logrus.Logger
}

// Local is a wallet backed by a local key and per-chain RPC endpoints.
//
// The active chain is whatever the selected endpoint reports through eth_chainId,
// not the chain that was requested.
type Local struct {
	signer  signer.Signer
	pool    *chainctx.Pool
	fixed   bool
	confirm signer.Confirmer
	opts    execution.Options
	logger  *logrus.Logger
	log     *logrus.Entry

	mu       sync.Mutex
	selected int64
}

func NewLocal(cfg Config) (*Local, error) {
	if cfg.Pool == nil {
		return nil, clierr.New(clierr.CodeUsage, "wallet requires an rpc pool")
	}
	if cfg.ChainID <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "wallet requires an initial chain")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Local{
		signer:   cfg.Signer,
		pool:     cfg.Pool,
		fixed:    cfg.Fixed,
		confirm:  cfg.Confirm,
		opts:     cfg.Sender,
		logger:   cfg.Logger,
		log:      cfg.Logger.WithField("component", "wallet"),
		selected: cfg.ChainID,
	}, nil
}

func (w *Local) Address() string {
	if w.signer == nil {
		return ""
	}
	return w.signer.Address().Hex()
}

func (w *Local) selectedChain() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selected
}

func (w *Local) ChainID(ctx context.Context) (int64, error) {
	client, err := w.pool.Client(ctx, w.selectedChain())
	if err != nil {
		return 0, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, clierr.WrapKind(clierr.KindClientUnavailable, "read chain id", err)
	}
	return chainID.Int64(), nil
}

func (w *Local) SwitchChain(ctx context.Context, chainID int64) error {
	if w.fixed {
		return clierr.NewKind(clierr.KindSwitchUnsupported, "wallet is pinned to a single rpc endpoint")
	}
	if w.confirm != nil {
		chain := id.ChainByID(chainID)
		ok, err := w.confirm.Confirm(fmt.Sprintf("switch wallet network to %s (chain id %d)?", chain.Name, chainID))
		if err != nil {
			return clierr.WrapKind(clierr.KindUserRejectedSwitch, "switch confirmation", err)
		}
		if !ok {
			return clierr.NewKind(clierr.KindUserRejectedSwitch, "network switch declined")
		}
	}
	if _, err := w.pool.Client(ctx, chainID); err != nil {
		return err
	}

	w.mu.Lock()
	w.selected = chainID
	w.mu.Unlock()
	w.log.WithField("chain_id", chainID).Debug("network selected")
	return nil
}

// Clients builds a fresh sender for the active chain on every call.
func (w *Local) Clients(ctx context.Context) (chainctx.Clients, error) {
	if w.signer == nil {
		return chainctx.Clients{}, clierr.NewKind(clierr.KindWalletNotConnected, "no signing key configured")
	}
	client, err := w.pool.Client(ctx, w.selectedChain())
	if err != nil {
		return chainctx.Clients{}, err
	}
	reported, err := client.ChainID(ctx)
	if err != nil {
		return chainctx.Clients{}, clierr.WrapKind(clierr.KindClientUnavailable, "read chain id", err)
	}
	chainID := reported.Int64()
	return chainctx.Clients{
		ChainID:   chainID,
		Execution: execution.NewSender(client, w.signer, chainID, w.opts, w.logger),
		Read:      client,
	}, nil
}
