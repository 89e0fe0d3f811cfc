package chainctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

// Switcher moves the wallet onto the chain an order needs. It holds no state of
// its own, so EnsureOnChain is safe to call repeatedly and concurrently.
//
// Switch requests carry no timeout beyond ctx: a wallet that never answers leaves
// the call pending until the caller cancels.
type Switcher struct {
	wallet Wallet
	log    *logrus.Entry
}

func NewSwitcher(wallet Wallet, logger *logrus.Logger) *Switcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Switcher{wallet: wallet, log: logger.WithField("component", "chain_switcher")}
}

func (s *Switcher) EnsureOnChain(ctx context.Context, targetChainID int64, walletAddress string) (Clients, error) {
	if strings.TrimSpace(walletAddress) == "" || s.wallet == nil {
		return Clients{}, clierr.NewKind(clierr.KindWalletNotConnected, "wallet address is required")
	}
	connected := s.wallet.Address()
	if connected == "" {
		return Clients{}, clierr.NewKind(clierr.KindWalletNotConnected, "no wallet connected")
	}
	if !strings.EqualFold(connected, strings.TrimSpace(walletAddress)) {
		return Clients{}, clierr.NewKind(clierr.KindWalletNotConnected,
			fmt.Sprintf("connected wallet %s does not match %s", connected, walletAddress))
	}

	current, err := s.wallet.ChainID(ctx)
	if err != nil {
		return Clients{}, classify(err, "read active chain")
	}
	log := s.log.WithFields(logrus.Fields{"from": current, "to": targetChainID})
	if current == targetChainID {
		metrics.ChainSwitches.WithLabelValues("noop").Inc()
		return s.clientsFor(ctx, targetChainID)
	}

	log.Info("requesting network switch")
	if err := s.wallet.SwitchChain(ctx, targetChainID); err != nil {
		kind := clierr.KindOf(err)
		metrics.ChainSwitches.WithLabelValues(resultLabel(kind)).Inc()
		log.WithError(err).Warn("network switch failed")
		return Clients{}, classify(err, "switch network")
	}

	after, err := s.wallet.ChainID(ctx)
	if err != nil {
		return Clients{}, classify(err, "read active chain after switch")
	}
	if after != targetChainID {
		metrics.ChainSwitches.WithLabelValues(string(clierr.KindChainMismatchAfterSwitch)).Inc()
		return Clients{}, clierr.NewKind(clierr.KindChainMismatchAfterSwitch,
			fmt.Sprintf("wallet reports chain %d after switching to %d", after, targetChainID))
	}
	metrics.ChainSwitches.WithLabelValues("switched").Inc()
	return s.clientsFor(ctx, targetChainID)
}

func (s *Switcher) clientsFor(ctx context.Context, chainID int64) (Clients, error) {
	clients, err := s.wallet.Clients(ctx)
	if err != nil {
		return Clients{}, classify(err, "connect clients")
	}
	if clients.Execution == nil || clients.Read == nil {
		return Clients{}, clierr.NewKind(clierr.KindClientUnavailable, fmt.Sprintf("clients for chain %d are not available", chainID))
	}
	if clients.ChainID != chainID {
		return Clients{}, clierr.NewKind(clierr.KindChainMismatchAfterSwitch,
			fmt.Sprintf("clients bound to chain %d, expected %d", clients.ChainID, chainID))
	}
	return clients, nil
}

// classify keeps a wallet-provided kind and treats anything unclassified as an unavailable client.
func classify(err error, action string) error {
	if clierr.KindOf(err) != clierr.KindNone {
		return err
	}
	return clierr.WrapKind(clierr.KindClientUnavailable, action, err)
}

func resultLabel(kind clierr.Kind) string {
	if kind == clierr.KindNone {
		return string(clierr.KindClientUnavailable)
	}
	return string(kind)
}
