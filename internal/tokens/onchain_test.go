package tokens

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ggonzalez94/defi-intents/internal/registry"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type callArgs struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Input string `json:"input"`
}

// newTokenRPCServer answers ERC20 metadata calls. symbolBytes32 makes symbol()
// return a legacy bytes32 value.
func newTokenRPCServer(t *testing.T, symbol string, decimals uint8, symbolBytes32 bool) *httptest.Server {
	t.Helper()
	erc20, err := abi.JSON(strings.NewReader(registry.ERC20ABI))
	if err != nil {
		t.Fatalf("parse erc20 abi: %v", err)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Method != "eth_call" || len(req.Params) == 0 {
			writeRPCError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
			return
		}
		var args callArgs
		if err := json.Unmarshal(req.Params[0], &args); err != nil {
			writeRPCError(w, req.ID, -32602, err.Error())
			return
		}
		input := args.Input
		if input == "" {
			input = args.Data
		}
		selector, err := hex.DecodeString(strings.TrimPrefix(input, "0x"))
		if err != nil || len(selector) < 4 {
			writeRPCError(w, req.ID, -32602, "bad call data")
			return
		}
		method, err := erc20.MethodById(selector[:4])
		if err != nil {
			writeRPCResult(w, req.ID, "0x")
			return
		}

		var out []byte
		switch method.Name {
		case "symbol":
			if symbolBytes32 {
				var word [32]byte
				copy(word[:], symbol)
				out = word[:]
			} else {
				out, err = method.Outputs.Pack(symbol)
			}
		case "name":
			out, err = method.Outputs.Pack(symbol + " Token")
		case "decimals":
			out, err = method.Outputs.Pack(decimals)
		default:
			out, err = method.Outputs.Pack(big.NewInt(0))
		}
		if err != nil {
			t.Fatalf("pack %s output: %v", method.Name, err)
		}
		writeRPCResult(w, req.ID, "0x"+hex.EncodeToString(out))
	}
	return httptest.NewServer(http.HandlerFunc(handler))
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, rawIDOrDefault(id), result)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":%q}}`, rawIDOrDefault(id), code, message)
}

func rawIDOrDefault(id json.RawMessage) string {
	if len(id) == 0 {
		return "1"
	}
	return string(id)
}

func dialer(url string) CallerFunc {
	return func(ctx context.Context, chainID int64) (ethereum.ContractCaller, error) {
		return ethclient.DialContext(ctx, url)
	}
}

func TestChainReaderReadsERC20Metadata(t *testing.T) {
	server := newTokenRPCServer(t, "ARB", 18, false)
	defer server.Close()

	reader := NewChainReader(dialer(server.URL))
	desc, err := reader.ReadToken(context.Background(), 42161, "0x912CE59144191C1204E64559FE8253a0e49E6548")
	if err != nil {
		t.Fatalf("ReadToken failed: %v", err)
	}
	if desc.Symbol != "ARB" || desc.Decimals != 18 || desc.Name != "ARB Token" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if desc.Address != "0x912ce59144191c1204e64559fe8253a0e49e6548" {
		t.Fatalf("expected normalized address, got %s", desc.Address)
	}
}

func TestChainReaderLegacyBytes32Symbol(t *testing.T) {
	server := newTokenRPCServer(t, "MKR", 18, true)
	defer server.Close()

	reader := NewChainReader(dialer(server.URL))
	desc, err := reader.ReadToken(context.Background(), 1, "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2")
	if err != nil {
		t.Fatalf("ReadToken failed: %v", err)
	}
	if desc.Symbol != "MKR" {
		t.Fatalf("expected bytes32 symbol decoded, got %q", desc.Symbol)
	}
}

func TestChainReaderDialFailure(t *testing.T) {
	reader := NewChainReader(func(ctx context.Context, chainID int64) (ethereum.ContractCaller, error) {
		return nil, fmt.Errorf("no rpc configured for chain %d", chainID)
	})
	if _, err := reader.ReadToken(context.Background(), 1, arbUnlisted); err == nil {
		t.Fatal("expected dial error")
	}
}
