package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution"
	execsigner "github.com/ggonzalez94/defi-intents/internal/execution/signer"
	"github.com/ggonzalez94/defi-intents/internal/wallet"
)

// lineReader is the single reader over stdin shared by prompts and the session loop.
type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	if r == nil {
		r = strings.NewReader("")
	}
	return &lineReader{r: bufio.NewReader(r)}
}

// ReadLine returns io.EOF once input is exhausted and nothing was read.
func (l *lineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// prompter asks yes/no questions on stderr and reads answers from stdin.
type prompter struct {
	in  *lineReader
	out io.Writer
}

func (p prompter) Confirm(prompt string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s [y/N]: ", prompt); err != nil {
		return false, err
	}
	answer, err := p.in.ReadLine()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

var autoApprove = execsigner.ConfirmFunc(func(string) (bool, error) { return true, nil })

type signerFlags struct {
	keySource          string
	confirmAddress     string
	rpcURL             string
	yes                bool
	simulate           bool
	pollInterval       string
	stepTimeout        string
	gasMultiplier      float64
	maxFeeGwei         string
	maxPriorityFeeGwei string
}

func (f *signerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.keySource, "key-source", execsigner.KeySourceAuto, "Key source (auto|env|file|keystore)")
	cmd.Flags().StringVar(&f.confirmAddress, "confirm-address", "", "Require signer address to match this value")
	cmd.Flags().StringVar(&f.rpcURL, "rpc-url", "", "Pin the wallet to this RPC endpoint (network switches are then refused)")
	cmd.Flags().BoolVar(&f.yes, "yes", false, "Approve network switches and signatures without prompting")
	cmd.Flags().BoolVar(&f.simulate, "simulate", true, "Run preflight simulation before signing")
	cmd.Flags().StringVar(&f.pollInterval, "poll-interval", "2s", "Receipt polling interval")
	cmd.Flags().StringVar(&f.stepTimeout, "step-timeout", "2m", "Per-transaction receipt timeout")
	cmd.Flags().Float64Var(&f.gasMultiplier, "gas-multiplier", 1.2, "Gas estimate safety multiplier")
	cmd.Flags().StringVar(&f.maxFeeGwei, "max-fee-gwei", "", "Optional EIP-1559 max fee (gwei)")
	cmd.Flags().StringVar(&f.maxPriorityFeeGwei, "max-priority-fee-gwei", "", "Optional EIP-1559 max priority fee (gwei)")
}

func (f signerFlags) senderOptions() (execution.Options, error) {
	opts := execution.DefaultOptions()
	opts.Simulate = f.simulate
	if strings.TrimSpace(f.pollInterval) != "" {
		d, err := time.ParseDuration(f.pollInterval)
		if err != nil || d <= 0 {
			return execution.Options{}, clierr.New(clierr.CodeUsage, "--poll-interval must be a positive duration")
		}
		opts.PollInterval = d
	}
	if strings.TrimSpace(f.stepTimeout) != "" {
		d, err := time.ParseDuration(f.stepTimeout)
		if err != nil || d <= 0 {
			return execution.Options{}, clierr.New(clierr.CodeUsage, "--step-timeout must be a positive duration")
		}
		opts.ReceiptTimeout = d
	}
	if f.gasMultiplier < 1 {
		return execution.Options{}, clierr.New(clierr.CodeUsage, "--gas-multiplier must be at least 1")
	}
	opts.GasMultiplier = f.gasMultiplier
	for name, v := range map[string]string{"--max-fee-gwei": f.maxFeeGwei, "--max-priority-fee-gwei": f.maxPriorityFeeGwei} {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := new(big.Float).SetString(strings.TrimSpace(v)); !ok {
			return execution.Options{}, clierr.New(clierr.CodeUsage, name+" must be a number")
		}
	}
	opts.MaxFeeGwei = strings.TrimSpace(f.maxFeeGwei)
	opts.MaxPriorityFeeGwei = strings.TrimSpace(f.maxPriorityFeeGwei)
	return opts, nil
}

// newWallet loads the local key and builds a wallet starting on chainID. A
// missing key is not an error here: the wallet reports WalletNotConnected when used.
func (s *runtimeState) newWallet(f signerFlags, chainID int64) (*wallet.Local, error) {
	opts, err := f.senderOptions()
	if err != nil {
		return nil, err
	}
	var confirm execsigner.Confirmer = prompter{in: s.input, out: s.runner.stderr}
	if f.yes {
		confirm = autoApprove
	}

	var txSigner execsigner.Signer
	local, err := execsigner.Load(f.keySource)
	switch {
	case err == nil:
		if addr := strings.TrimSpace(f.confirmAddress); addr != "" && !strings.EqualFold(addr, local.Address().Hex()) {
			return nil, clierr.New(clierr.CodeWallet, "signer address does not match --confirm-address")
		}
		txSigner = &execsigner.Prompting{Inner: local, Confirm: confirm}
	case errors.Is(err, execsigner.ErrNoKey):
		s.logger.WithError(err).Debug("no signing key available")
	default:
		return nil, clierr.Wrap(clierr.CodeWallet, "load signing key", err)
	}

	svc, err := s.services()
	if err != nil {
		return nil, err
	}
	pool := svc.pool
	fixed := strings.TrimSpace(f.rpcURL) != ""
	if fixed {
		url := strings.TrimSpace(f.rpcURL)
		pool = chainctx.NewPool(func(int64) (string, error) { return url, nil })
	}
	return wallet.NewLocal(wallet.Config{
		Signer:  txSigner,
		ChainID: chainID,
		Pool:    pool,
		Fixed:   fixed,
		Confirm: confirm,
		Sender:  opts,
		Logger:  s.logger,
	})
}
