package app

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/intent"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/order"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/schema"
)

type tradeCommand struct {
	kind  quotes.Kind
	short string
}

var (
	swapCommand   = tradeCommand{kind: quotes.KindSwap, short: "Swap tokens on one chain (Uniswap V3)"}
	bridgeCommand = tradeCommand{kind: quotes.KindBridge, short: "Move tokens across chains (LI.FI)"}
	stakeCommand  = tradeCommand{kind: quotes.KindStake, short: "Deposit into an ERC-4626 vault"}
)

// tradeFlags are the flags that describe one intent.
type tradeFlags struct {
	chain       string
	toChain     string
	sell        string
	buy         string
	vault       string
	amount      string
	slippageBps int64
}

func (f *tradeFlags) register(cmd *cobra.Command, kind quotes.Kind) {
	switch kind {
	case quotes.KindSwap:
		cmd.Flags().StringVar(&f.chain, "chain", "", "Chain identifier")
		cmd.Flags().StringVar(&f.sell, "from-asset", "", "Token to sell (symbol or address)")
		cmd.Flags().StringVar(&f.buy, "to-asset", "", "Token to buy (symbol or address)")
		_ = cmd.MarkFlagRequired("chain")
		_ = cmd.MarkFlagRequired("from-asset")
		_ = cmd.MarkFlagRequired("to-asset")
	case quotes.KindBridge:
		cmd.Flags().StringVar(&f.chain, "from", "", "Source chain")
		cmd.Flags().StringVar(&f.toChain, "to", "", "Destination chain")
		cmd.Flags().StringVar(&f.sell, "asset", "", "Token on the source chain")
		cmd.Flags().StringVar(&f.buy, "to-asset", "", "Token on the destination chain (defaults to --asset)")
		_ = cmd.MarkFlagRequired("from")
		_ = cmd.MarkFlagRequired("to")
		_ = cmd.MarkFlagRequired("asset")
	case quotes.KindStake:
		cmd.Flags().StringVar(&f.chain, "chain", "", "Chain identifier")
		cmd.Flags().StringVar(&f.sell, "asset", "", "Token to deposit (must be the vault asset)")
		cmd.Flags().StringVar(&f.vault, "vault", "", "ERC-4626 vault address")
		_ = cmd.MarkFlagRequired("chain")
		_ = cmd.MarkFlagRequired("asset")
		_ = cmd.MarkFlagRequired("vault")
	}
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount to sell in decimal units (e.g. 1.5)")
	cmd.Flags().Int64Var(&f.slippageBps, "slippage-bps", 0, "Max slippage in basis points (default from config)")
	_ = cmd.MarkFlagRequired("amount")
}

func (f tradeFlags) intent(kind quotes.Kind) (intent.Intent, error) {
	in := intent.Intent{
		Kind:        kind,
		Amount:      strings.TrimSpace(f.amount),
		Sell:        strings.TrimSpace(f.sell),
		Buy:         strings.TrimSpace(f.buy),
		SlippageBps: f.slippageBps,
	}
	chain, err := id.ParseChain(f.chain)
	if err != nil {
		return intent.Intent{}, err
	}
	in.ChainID = chain.ID
	if kind == quotes.KindBridge {
		dest, err := id.ParseChain(f.toChain)
		if err != nil {
			return intent.Intent{}, err
		}
		in.DestChainID = dest.ID
	}
	if kind == quotes.KindStake {
		in.Target = strings.TrimSpace(f.vault)
		if !id.IsEVMAddress(in.Target) {
			return intent.Intent{}, clierr.NewKind(clierr.KindInvalidAddressFormat, "--vault must be a contract address")
		}
	}
	if f.slippageBps < 0 || f.slippageBps >= 10_000 {
		return intent.Intent{}, clierr.New(clierr.CodeUsage, "--slippage-bps must be between 0 and 9999")
	}
	return in, nil
}

func (s *runtimeState) newTradeCommand(tc tradeCommand) *cobra.Command {
	root := &cobra.Command{Use: string(tc.kind), Short: tc.short}

	var quoteFlags tradeFlags
	var sender string
	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price the " + string(tc.kind) + " without signing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := quoteFlags.intent(tc.kind)
			if err != nil {
				return err
			}
			priced, err := s.priceIntent(cmd.Context(), in, strings.TrimSpace(sender))
			if err != nil {
				return err
			}
			svc, err := s.services()
			if err != nil {
				return err
			}
			q := svc.clock.Stamp(priced.quote)
			authoritative := svc.registry.Register(q)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), quoteView(q, authoritative), nil, []model.ProviderStatus{priced.status})
		},
	}
	quoteFlags.register(quoteCmd, tc.kind)
	quoteCmd.Flags().StringVar(&sender, "from-address", "", "Sender address used for routing and deposit limits")

	var execFlags tradeFlags
	var sf signerFlags
	executeCmd := &cobra.Command{
		Use:         "execute",
		Short:       "Quote the " + string(tc.kind) + ", confirm, then approve, sign and submit it",
		Annotations: map[string]string{schema.AnnotationSigns: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := execFlags.intent(tc.kind)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			a, statuses, err := s.executeIntent(ctx, in, sf)
			if err != nil {
				return err
			}
			if err := attemptError(a); err != nil {
				s.lastProviders = statuses
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), a, nil, statuses)
		},
	}
	execFlags.register(executeCmd, tc.kind)
	sf.register(executeCmd)

	root.AddCommand(quoteCmd, executeCmd)
	return root
}

// executeIntent quotes in for the wallet, keeps the quote refreshing while the
// user decides, then runs one order attempt against whatever quote is current.
func (s *runtimeState) executeIntent(ctx context.Context, in intent.Intent, sf signerFlags) (*order.Attempt, []model.ProviderStatus, error) {
	w, err := s.newWallet(sf, in.ChainID)
	if err != nil {
		return nil, nil, err
	}
	if w.Address() == "" {
		return nil, nil, clierr.NewKind(clierr.KindWalletNotConnected, "no signing key configured; set INTENTS_PRIVATE_KEY or use --key-source")
	}
	priced, err := s.priceIntent(ctx, in, w.Address())
	if err != nil {
		return nil, nil, err
	}
	statuses := []model.ProviderStatus{priced.status}

	svc, err := s.services()
	if err != nil {
		return nil, statuses, err
	}
	session := svc.manager.Open(priced.quote, priced.refresher)
	defer session.Close()

	// The confirmed quote is the one executed; a refresh after the prompt
	// demotes it and the order is refused.
	shown := session.Current()
	if !sf.yes {
		ok, err := prompter{in: s.input, out: s.runner.stderr}.Confirm("execute " + summary(shown) + "?")
		if err != nil {
			return nil, statuses, clierr.Wrap(clierr.CodeInternal, "read confirmation", err)
		}
		if !ok {
			return nil, statuses, clierr.New(clierr.CodeRejected, "execution declined")
		}
	}

	machine, err := s.newMachine(w, nil)
	if err != nil {
		return nil, statuses, err
	}
	a := machine.Run(ctx, order.Request{Quote: shown, Wallet: w.Address(), Session: session})
	return a, statuses, nil
}
