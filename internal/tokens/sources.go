package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/defi-intents/internal/cache"
	"github.com/ggonzalez94/defi-intents/internal/httpx"
	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

// ListSource yields token descriptors across chains. Sources are consulted in
// configuration order and earlier sources win on conflicts.
type ListSource interface {
	Name() string
	Fetch(ctx context.Context) ([]Descriptor, error)
}

const snapshotNamespace = "tokenlist"

// tokenList is the Uniswap token list schema.
type tokenList struct {
	Name   string `json:"name"`
	Tokens []struct {
		ChainID  int64  `json:"chainId"`
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Decimals int    `json:"decimals"`
	} `json:"tokens"`
}

// HTTPListSource fetches a remote token list and keeps a persistent snapshot
// so a later run can fall back to it when the endpoint is down.
type HTTPListSource struct {
	url      string
	http     *httpx.Client
	store    *cache.Store
	ttl      time.Duration
	maxStale time.Duration
	log      *logrus.Entry
}

func NewHTTPListSource(url string, client *httpx.Client, store *cache.Store, ttl, maxStale time.Duration, logger *logrus.Logger) *HTTPListSource {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPListSource{
		url:      url,
		http:     client,
		store:    store,
		ttl:      ttl,
		maxStale: maxStale,
		log:      logger.WithFields(logrus.Fields{"component": "token_list", "url": url}),
	}
}

func (s *HTTPListSource) Name() string { return s.url }

func (s *HTTPListSource) Fetch(ctx context.Context) ([]Descriptor, error) {
	var snapshot cache.Entry
	if s.store != nil {
		entry, err := s.store.Lookup(snapshotNamespace, s.url, s.maxStale)
		if err != nil {
			s.log.WithError(err).Warn("read token list snapshot")
		} else {
			snapshot = entry
		}
		if snapshot.Hit && !snapshot.Stale {
			if out, err := decodeTokenList(snapshot.Value); err == nil {
				metrics.TokenListFetches.WithLabelValues("snapshot").Inc()
				return out, nil
			}
		}
	}

	var raw json.RawMessage
	if _, err := httpx.GetJSON(ctx, s.http, s.url, nil, &raw); err != nil {
		if snapshot.Usable() {
			if out, decodeErr := decodeTokenList(snapshot.Value); decodeErr == nil {
				s.log.WithError(err).WithField("age", snapshot.Age.String()).Warn("token list fetch failed, serving stale snapshot")
				metrics.TokenListFetches.WithLabelValues("stale").Inc()
				return out, nil
			}
		}
		metrics.TokenListFetches.WithLabelValues("error").Inc()
		return nil, err
	}

	out, err := decodeTokenList(raw)
	if err != nil {
		metrics.TokenListFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Put(ctx, snapshotNamespace, s.url, raw, s.ttl); err != nil {
			s.log.WithError(err).Warn("write token list snapshot")
		}
	}
	metrics.TokenListFetches.WithLabelValues("fetched").Inc()
	s.log.WithField("tokens", len(out)).Debug("token list fetched")
	return out, nil
}

func decodeTokenList(buf []byte) ([]Descriptor, error) {
	var list tokenList
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	out := make([]Descriptor, 0, len(list.Tokens))
	for _, t := range list.Tokens {
		out = append(out, Descriptor{
			ChainID:  t.ChainID,
			Address:  t.Address,
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: t.Decimals,
		})
	}
	return out, nil
}

// StaticSource serves a fixed set of descriptors.
type StaticSource struct {
	name   string
	tokens []Descriptor
}

func NewStaticSource(name string, tokens []Descriptor) *StaticSource {
	return &StaticSource{name: name, tokens: tokens}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(context.Context) ([]Descriptor, error) {
	return append([]Descriptor(nil), s.tokens...), nil
}

// Bootstrap is a small built-in list of major tokens, consulted after remote lists.
func Bootstrap() *StaticSource {
	return NewStaticSource("bootstrap", bootstrapTokens)
}

var bootstrapTokens = []Descriptor{
	{ChainID: 1, Symbol: "USDC", Name: "USD Coin", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
	{ChainID: 1, Symbol: "USDT", Name: "Tether USD", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
	{ChainID: 1, Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
	{ChainID: 1, Symbol: "WETH", Name: "Wrapped Ether", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
	{ChainID: 8453, Symbol: "USDC", Name: "USD Coin", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	{ChainID: 8453, Symbol: "DAI", Name: "Dai Stablecoin", Address: "0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb", Decimals: 18},
	{ChainID: 8453, Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	{ChainID: 42161, Symbol: "USDC", Name: "USD Coin", Address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", Decimals: 6},
	{ChainID: 42161, Symbol: "USDT", Name: "Tether USD", Address: "0xFd086bC7CD5C481DCC9C85ebe478A1C0b69FCbb9", Decimals: 6},
	{ChainID: 42161, Symbol: "DAI", Name: "Dai Stablecoin", Address: "0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1", Decimals: 18},
	{ChainID: 42161, Symbol: "WETH", Name: "Wrapped Ether", Address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", Decimals: 18},
	{ChainID: 10, Symbol: "USDC", Name: "USD Coin", Address: "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", Decimals: 6},
	{ChainID: 10, Symbol: "USDT", Name: "Tether USD", Address: "0x94b008aA00579c1307B0EF2c499aD98a8ce58e58", Decimals: 6},
	{ChainID: 10, Symbol: "WETH", Name: "Wrapped Ether", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	{ChainID: 137, Symbol: "USDC", Name: "USD Coin", Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6},
	{ChainID: 137, Symbol: "USDT", Name: "Tether USD", Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Decimals: 6},
	{ChainID: 137, Symbol: "WETH", Name: "Wrapped Ether", Address: "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", Decimals: 18},
	{ChainID: 137, Symbol: "WPOL", Name: "Wrapped Polygon Ecosystem Token", Address: "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", Decimals: 18},
	{ChainID: 56, Symbol: "USDT", Name: "Tether USD", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
	{ChainID: 56, Symbol: "WBNB", Name: "Wrapped BNB", Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
	{ChainID: 43114, Symbol: "USDC", Name: "USD Coin", Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6},
	{ChainID: 43114, Symbol: "WAVAX", Name: "Wrapped AVAX", Address: "0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7", Decimals: 18},
}
