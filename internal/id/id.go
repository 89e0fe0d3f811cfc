package id

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

var (
	eip155ChainPattern = regexp.MustCompile(`^eip155:[0-9]+$`)
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// NativeTokenAddress is the placeholder address used for a chain's gas token.
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

const zeroAddress = "0x0000000000000000000000000000000000000000"

type Chain struct {
	Name   string
	Slug   string
	ID     int64
	Native string
	// Wrapped is the ERC-20 symbol that stands in for Native in token lists.
	Wrapped string
}

func (c Chain) CAIP2() string {
	return fmt.Sprintf("eip155:%d", c.ID)
}

var chainBySlug = map[string]Chain{
	"ethereum":  {Name: "Ethereum", Slug: "ethereum", ID: 1, Native: "ETH", Wrapped: "WETH"},
	"mainnet":   {Name: "Ethereum", Slug: "ethereum", ID: 1, Native: "ETH", Wrapped: "WETH"},
	"base":      {Name: "Base", Slug: "base", ID: 8453, Native: "ETH", Wrapped: "WETH"},
	"arbitrum":  {Name: "Arbitrum", Slug: "arbitrum", ID: 42161, Native: "ETH", Wrapped: "WETH"},
	"optimism":  {Name: "Optimism", Slug: "optimism", ID: 10, Native: "ETH", Wrapped: "WETH"},
	"polygon":   {Name: "Polygon", Slug: "polygon", ID: 137, Native: "POL", Wrapped: "WPOL"},
	"avalanche": {Name: "Avalanche", Slug: "avalanche", ID: 43114, Native: "AVAX", Wrapped: "WAVAX"},
	"bsc":       {Name: "BSC", Slug: "bsc", ID: 56, Native: "BNB", Wrapped: "WBNB"},
	"taiko":     {Name: "Taiko", Slug: "taiko", ID: 167000, Native: "ETH", Wrapped: "WETH"},
}

var chainByID = map[int64]Chain{
	1:      chainBySlug["ethereum"],
	10:     chainBySlug["optimism"],
	56:     chainBySlug["bsc"],
	137:    chainBySlug["polygon"],
	8453:   chainBySlug["base"],
	42161:  chainBySlug["arbitrum"],
	43114:  chainBySlug["avalanche"],
	167000: chainBySlug["taiko"],
}

// ParseChain accepts a slug, a numeric chain id or an eip155 CAIP-2 identifier.
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "chain is required")
	}
	norm := strings.ToLower(raw)

	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}

	if eip155ChainPattern.MatchString(norm) {
		norm = strings.TrimPrefix(norm, "eip155:")
	}

	if id, err := strconv.ParseInt(norm, 10, 64); err == nil && id > 0 {
		return ChainByID(id), nil
	}

	return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported chain input: %s", input))
}

// ChainByID returns the known chain or a generic EVM placeholder.
func ChainByID(id int64) Chain {
	if chain, ok := chainByID[id]; ok {
		return chain
	}
	return Chain{Name: fmt.Sprintf("EVM-%d", id), Slug: fmt.Sprintf("evm-%d", id), ID: id, Native: "ETH", Wrapped: "WETH"}
}

func KnownChains() []Chain {
	out := make([]Chain, 0, len(chainByID))
	for _, chain := range chainByID {
		out = append(out, chain)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsEVMAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsEVMAddress(s string) bool {
	return evmAddressPattern.MatchString(strings.TrimSpace(s))
}

// LooksLikeAddress reports whether s has the shape of an address, valid hex or not.
func LooksLikeAddress(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) == 42 && (strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"))
}

func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func IsNativeAddress(s string) bool {
	s = NormalizeAddress(s)
	return s == NativeTokenAddress || s == zeroAddress
}
