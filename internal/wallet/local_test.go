package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/execution"
	"github.com/ggonzalez94/defi-intents/internal/execution/signer"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newChainIDServer answers eth_chainId with chainID.
func newChainIDServer(t *testing.T, chainID int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Method != "eth_chainId" {
			_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"unsupported"}}`, req.ID)
			return
		}
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%x"}`, req.ID, chainID)
	}))
}

func newTestWallet(t *testing.T, urls map[int64]string, cfg Config) *Local {
	t.Helper()
	s, err := signer.NewLocalSigner(signer.KeyConfig{Hex: testPrivateKey})
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	pool := chainctx.NewPool(func(chainID int64) (string, error) {
		if url, ok := urls[chainID]; ok {
			return url, nil
		}
		return "", fmt.Errorf("no rpc for chain %d", chainID)
	})
	t.Cleanup(pool.Close)
	cfg.Signer = s
	cfg.Pool = pool
	if cfg.ChainID == 0 {
		cfg.ChainID = 1
	}
	cfg.Sender = execution.DefaultOptions()
	w, err := NewLocal(cfg)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	return w
}

func TestLocalSwitchesWithConfirmation(t *testing.T) {
	mainnet := newChainIDServer(t, 1)
	defer mainnet.Close()
	base := newChainIDServer(t, 8453)
	defer base.Close()

	var prompts int
	w := newTestWallet(t, map[int64]string{1: mainnet.URL, 8453: base.URL}, Config{
		Confirm: signer.ConfirmFunc(func(string) (bool, error) { prompts++; return true, nil }),
	})
	switcher := chainctx.NewSwitcher(w, nil)

	clients, err := switcher.EnsureOnChain(context.Background(), 8453, w.Address())
	if err != nil {
		t.Fatalf("EnsureOnChain failed: %v", err)
	}
	if clients.ChainID != 8453 || clients.Execution.ChainID() != 8453 {
		t.Fatalf("unexpected clients chain: %d/%d", clients.ChainID, clients.Execution.ChainID())
	}
	if prompts != 1 {
		t.Fatalf("expected one switch prompt, got %d", prompts)
	}
}

func TestLocalDeclinedSwitch(t *testing.T) {
	mainnet := newChainIDServer(t, 1)
	defer mainnet.Close()

	w := newTestWallet(t, map[int64]string{1: mainnet.URL}, Config{
		Confirm: signer.ConfirmFunc(func(string) (bool, error) { return false, nil }),
	})
	_, err := chainctx.NewSwitcher(w, nil).EnsureOnChain(context.Background(), 42161, w.Address())
	if !clierr.IsKind(err, clierr.KindUserRejectedSwitch) {
		t.Fatalf("expected user rejected switch, got %v", err)
	}
	current, err := w.ChainID(context.Background())
	if err != nil || current != 1 {
		t.Fatalf("expected wallet to stay on chain 1, got %d err=%v", current, err)
	}
}

func TestLocalFixedCannotSwitch(t *testing.T) {
	mainnet := newChainIDServer(t, 1)
	defer mainnet.Close()

	w := newTestWallet(t, map[int64]string{1: mainnet.URL}, Config{Fixed: true})
	_, err := chainctx.NewSwitcher(w, nil).EnsureOnChain(context.Background(), 8453, w.Address())
	if !clierr.IsKind(err, clierr.KindSwitchUnsupported) {
		t.Fatalf("expected switch unsupported, got %v", err)
	}
}

func TestLocalMisconfiguredEndpointIsMismatch(t *testing.T) {
	mainnet := newChainIDServer(t, 1)
	defer mainnet.Close()
	wrong := newChainIDServer(t, 10)
	defer wrong.Close()

	w := newTestWallet(t, map[int64]string{1: mainnet.URL, 42161: wrong.URL}, Config{})
	_, err := chainctx.NewSwitcher(w, nil).EnsureOnChain(context.Background(), 42161, w.Address())
	if !clierr.IsKind(err, clierr.KindChainMismatchAfterSwitch) {
		t.Fatalf("expected chain mismatch, got %v", err)
	}
}

func TestLocalMissingEndpointIsClientUnavailable(t *testing.T) {
	mainnet := newChainIDServer(t, 1)
	defer mainnet.Close()

	w := newTestWallet(t, map[int64]string{1: mainnet.URL}, Config{})
	_, err := chainctx.NewSwitcher(w, nil).EnsureOnChain(context.Background(), 43114, w.Address())
	if !clierr.IsKind(err, clierr.KindClientUnavailable) {
		t.Fatalf("expected client unavailable, got %v", err)
	}
}
