package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution/signer"
)

// Call is an unsigned contract interaction.
type Call struct {
	Description string
	To          common.Address
	Data        []byte
	Value       *big.Int
}

// Backend is the subset of an RPC client the sender needs; *ethclient.Client satisfies it.
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.TransactionSender
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Options struct {
	Simulate           bool
	PollInterval       time.Duration
	ReceiptTimeout     time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
}

func DefaultOptions() Options {
	return Options{
		Simulate:       true,
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		GasMultiplier:  1.2,
	}
}

// Sender builds EIP-1559 transactions for one chain, signs them and waits for inclusion.
type Sender struct {
	backend Backend
	signer  signer.Signer
	chainID *big.Int
	opts    Options
	log     *logrus.Entry
}

func NewSender(backend Backend, txSigner signer.Signer, chainID int64, opts Options, logger *logrus.Logger) *Sender {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sender{
		backend: backend,
		signer:  txSigner,
		chainID: big.NewInt(chainID),
		opts:    opts,
		log:     logger.WithFields(logrus.Fields{"component": "sender", "chain_id": chainID}),
	}
}

func (s *Sender) Address() common.Address { return s.signer.Address() }

func (s *Sender) ChainID() int64 { return s.chainID.Int64() }

// Sign prices the call against current chain state and asks the signer for a signature.
func (s *Sender) Sign(ctx context.Context, call Call) (*types.Transaction, error) {
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	from := s.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &call.To, Value: value, Data: call.Data}

	if s.opts.Simulate {
		if _, err := s.backend.CallContract(ctx, msg, nil); err != nil {
			return nil, clierr.WrapKind(clierr.KindSimulationFailed, "simulate transaction (eth_call)", err)
		}
	}
	gasLimit, err := s.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindSimulationFailed, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * s.opts.GasMultiplier)

	tipCap, err := s.resolveTipCap(ctx)
	if err != nil {
		return nil, err
	}
	header, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, s.opts.MaxFeeGwei)
	if err != nil {
		return nil, err
	}
	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &call.To,
		Value:     value,
		Data:      call.Data,
	})
	signed, err := s.signer.SignTx(s.chainID, tx)
	if err != nil {
		if errors.Is(err, signer.ErrRejected) {
			return nil, clierr.WrapKind(clierr.KindSigningRejected, "sign transaction", err)
		}
		return nil, clierr.Wrap(clierr.CodeExecution, "sign transaction", err)
	}
	s.log.WithFields(logrus.Fields{"to": call.To.Hex(), "nonce": nonce, "gas": gasLimit, "step": call.Description}).Debug("transaction signed")
	return signed, nil
}

func (s *Sender) Submit(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, clierr.WrapKind(clierr.KindSubmissionFailed, "broadcast transaction", err)
	}
	s.log.WithField("tx_hash", tx.Hash().Hex()).Info("transaction broadcast")
	return tx.Hash(), nil
}

// Wait polls for the receipt until it lands or the receipt timeout elapses.
func (s *Sender) Wait(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.ReceiptTimeout)
	defer cancel()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := s.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return receipt, nil
			}
			return receipt, clierr.NewKind(clierr.KindSubmissionFailed, fmt.Sprintf("transaction %s reverted on-chain", hash.Hex()))
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.log.WithError(err).Debug("receipt poll failed")
		}
		select {
		case <-waitCtx.Done():
			return nil, clierr.WrapKind(clierr.KindSubmissionFailed, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// Send signs, broadcasts and waits for a single call.
func (s *Sender) Send(ctx context.Context, call Call) (*types.Receipt, error) {
	tx, err := s.Sign(ctx, call)
	if err != nil {
		return nil, err
	}
	hash, err := s.Submit(ctx, tx)
	if err != nil {
		return nil, err
	}
	return s.Wait(ctx, hash)
}

func (s *Sender) resolveTipCap(ctx context.Context) (*big.Int, error) {
	if strings.TrimSpace(s.opts.MaxPriorityFeeGwei) != "" {
		v, err := parseGwei(s.opts.MaxPriorityFeeGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse max priority fee", err)
		}
		return v, nil
	}
	tipCap, err := s.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return big.NewInt(2_000_000_000), nil // 2 gwei fallback
	}
	return tipCap, nil
}

func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse max fee", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, clierr.New(clierr.CodeUsage, "max fee must be >= max priority fee")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	return feeCap.Add(feeCap, tipCap), nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}
