package tokens

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ggonzalez94/defi-intents/internal/httpx"
	"github.com/ggonzalez94/defi-intents/internal/registry"
)

// MetadataHit is a market-data search result. Address is not validated by the provider.
type MetadataHit struct {
	Address     string
	Symbol      string
	Name        string
	Decimals    int
	HasDecimals bool
}

// MetadataProvider searches an external market-data index by symbol.
type MetadataProvider interface {
	Search(ctx context.Context, symbol string, chainID int64) (MetadataHit, bool, error)
}

const maxDetailLookups = 3

type CoinGecko struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

func NewCoinGecko(baseURL, apiKey string, client *httpx.Client) *CoinGecko {
	return &CoinGecko{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: client}
}

type searchResponse struct {
	Coins []struct {
		ID            string `json:"id"`
		Symbol        string `json:"symbol"`
		Name          string `json:"name"`
		MarketCapRank *int   `json:"market_cap_rank"`
	} `json:"coins"`
}

type coinDetail struct {
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	DetailPlatforms map[string]struct {
		DecimalPlace    *int   `json:"decimal_place"`
		ContractAddress string `json:"contract_address"`
	} `json:"detail_platforms"`
}

func (c *CoinGecko) Search(ctx context.Context, symbol string, chainID int64) (MetadataHit, bool, error) {
	platform, ok := registry.MarketPlatform(chainID)
	if !ok {
		return MetadataHit{}, false, nil
	}

	var search searchResponse
	endpoint := fmt.Sprintf("%s/search?query=%s", c.baseURL, url.QueryEscape(symbol))
	if _, err := httpx.GetJSON(ctx, c.http, endpoint, c.headers(), &search); err != nil {
		return MetadataHit{}, false, err
	}

	matches := search.Coins[:0]
	for _, coin := range search.Coins {
		if strings.EqualFold(coin.Symbol, symbol) {
			matches = append(matches, coin)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := matches[i].MarketCapRank, matches[j].MarketCapRank
		if ri == nil || rj == nil {
			return ri != nil
		}
		return *ri < *rj
	})

	for i, coin := range matches {
		if i >= maxDetailLookups {
			break
		}
		var detail coinDetail
		endpoint := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=false&community_data=false&developer_data=false&sparkline=false",
			c.baseURL, url.PathEscape(coin.ID))
		if _, err := httpx.GetJSON(ctx, c.http, endpoint, c.headers(), &detail); err != nil {
			return MetadataHit{}, false, err
		}
		p, ok := detail.DetailPlatforms[platform]
		if !ok || strings.TrimSpace(p.ContractAddress) == "" {
			continue
		}
		hit := MetadataHit{
			Address: strings.TrimSpace(p.ContractAddress),
			Symbol:  strings.ToUpper(detail.Symbol),
			Name:    detail.Name,
		}
		if p.DecimalPlace != nil {
			hit.Decimals = *p.DecimalPlace
			hit.HasDecimals = true
		}
		return hit, true, nil
	}
	return MetadataHit{}, false, nil
}

func (c *CoinGecko) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": c.apiKey}
}
