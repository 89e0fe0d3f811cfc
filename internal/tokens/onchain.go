package tokens

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/defi-intents/internal/registry"
)

// ContractReader reads token metadata straight from the token contract.
type ContractReader interface {
	ReadToken(ctx context.Context, chainID int64, address string) (Descriptor, error)
}

// CallerFunc returns a contract caller connected to chainID.
type CallerFunc func(ctx context.Context, chainID int64) (ethereum.ContractCaller, error)

type ChainReader struct {
	caller CallerFunc
	erc20  abi.ABI
}

func NewChainReader(caller CallerFunc) *ChainReader {
	parsed, err := abi.JSON(strings.NewReader(registry.ERC20ABI))
	if err != nil {
		panic(err)
	}
	return &ChainReader{caller: caller, erc20: parsed}
}

func (r *ChainReader) ReadToken(ctx context.Context, chainID int64, address string) (Descriptor, error) {
	client, err := r.caller(ctx, chainID)
	if err != nil {
		return Descriptor{}, fmt.Errorf("connect chain %d: %w", chainID, err)
	}
	token := common.HexToAddress(address)

	symbol, err := r.readString(ctx, client, token, "symbol")
	if err != nil {
		return Descriptor{}, err
	}
	rawDecimals, err := r.call(ctx, client, token, "decimals")
	if err != nil {
		return Descriptor{}, err
	}
	decoded, err := r.erc20.Unpack("decimals", rawDecimals)
	if err != nil || len(decoded) == 0 {
		return Descriptor{}, fmt.Errorf("decode decimals: %v", err)
	}
	decimals, ok := decoded[0].(uint8)
	if !ok {
		return Descriptor{}, fmt.Errorf("unexpected decimals type %T", decoded[0])
	}
	name, err := r.readString(ctx, client, token, "name")
	if err != nil {
		name = symbol
	}

	return Descriptor{
		ChainID:  chainID,
		Address:  strings.ToLower(token.Hex()),
		Symbol:   symbol,
		Name:     name,
		Decimals: int(decimals),
	}.normalized(), nil
}

func (r *ChainReader) call(ctx context.Context, client ethereum.ContractCaller, token common.Address, method string) ([]byte, error) {
	data, err := r.erc20.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result, address is not a token contract", method)
	}
	return out, nil
}

// readString handles both ABI strings and legacy bytes32 return values.
func (r *ChainReader) readString(ctx context.Context, client ethereum.ContractCaller, token common.Address, method string) (string, error) {
	out, err := r.call(ctx, client, token, method)
	if err != nil {
		return "", err
	}
	if decoded, err := r.erc20.Unpack(method, out); err == nil && len(decoded) == 1 {
		if s, ok := decoded[0].(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}
	if len(out) == 32 {
		if s := string(bytes.TrimRight(out, "\x00")); s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("decode %s: unsupported return data", method)
}
