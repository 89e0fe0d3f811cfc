package lifi

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/httpx"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
)

const (
	name = "lifi"
	// placeholderSender prices routes before a wallet is known; the plan
	// re-fetches with the real sender before signing.
	placeholderSender = "0x0000000000000000000000000000000000000001"
)

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://li.quest/v1"
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, now: time.Now}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:        name,
		Type:        "bridge",
		RequiresKey: false,
		Capabilities: []string{
			"bridge.quote",
			"bridge.execute",
		},
		KeyEnvVarName: "INTENTS_LIFI_API_KEY",
	}
}

func (c *Client) Kind() quotes.Kind { return quotes.KindBridge }

type tokenRef struct {
	Address  string `json:"address"`
	ChainID  int64  `json:"chainId"`
	Decimals int    `json:"decimals"`
}

type quoteResponse struct {
	ID       string `json:"id"`
	Estimate struct {
		FromAmount      string `json:"fromAmount"`
		ToAmount        string `json:"toAmount"`
		ToAmountMin     string `json:"toAmountMin"`
		ApprovalAddress string `json:"approvalAddress"`
		FeeCosts        []struct {
			Amount   string   `json:"amount"`
			Included bool     `json:"included"`
			Token    tokenRef `json:"token"`
		} `json:"feeCosts"`
		GasCosts []struct {
			Amount string   `json:"amount"`
			Token  tokenRef `json:"token"`
		} `json:"gasCosts"`
		ExecutionDuration int64 `json:"executionDuration"`
	} `json:"estimate"`
	ToolDetails struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"toolDetails"`
	Tool               string `json:"tool"`
	TransactionRequest struct {
		To      string `json:"to"`
		From    string `json:"from"`
		Data    string `json:"data"`
		Value   string `json:"value"`
		ChainID int64  `json:"chainId"`
	} `json:"transactionRequest"`
}

func (c *Client) Quote(ctx context.Context, req providers.QuoteRequest) (*quotes.Quote, error) {
	if req.DestChainID == 0 || req.DestChainID == req.ChainID {
		return nil, clierr.New(clierr.CodeUsage, "bridge requires a different destination chain")
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "bridge amount must be positive")
	}
	sender := strings.TrimSpace(req.Sender)
	if sender == "" {
		sender = placeholderSender
	}
	if !common.IsHexAddress(sender) {
		return nil, clierr.New(clierr.CodeUsage, "bridge sender must be a valid EVM address")
	}
	slippage := providers.Slippage(req.SlippageBps)

	resp, err := c.fetch(ctx, req, sender, slippage)
	if err != nil {
		return nil, err
	}
	toAmount, ok := new(big.Int).SetString(strings.TrimSpace(resp.Estimate.ToAmount), 10)
	if !ok || toAmount.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "lifi quote missing output amount")
	}
	tx, err := transactionFrom(resp, req.ChainID)
	if err != nil {
		return nil, err
	}

	spender := ""
	if !req.Sell.IsNative() {
		if !common.IsHexAddress(resp.Estimate.ApprovalAddress) {
			return nil, clierr.New(clierr.CodeUnavailable, "lifi quote returned invalid approval address")
		}
		spender = strings.ToLower(resp.Estimate.ApprovalAddress)
	}

	before := new(big.Int).Set(toAmount)
	for _, fee := range resp.Estimate.FeeCosts {
		if !fee.Included || fee.Token.ChainID != req.DestChainID || !strings.EqualFold(fee.Token.Address, req.Buy.Address) {
			continue
		}
		if v, ok := new(big.Int).SetString(fee.Amount, 10); ok {
			before.Add(before, v)
		}
	}
	var gas *big.Int
	for _, cost := range resp.Estimate.GasCosts {
		if !id.IsNativeAddress(cost.Token.Address) {
			continue
		}
		if v, ok := new(big.Int).SetString(cost.Amount, 10); ok {
			if gas == nil {
				gas = new(big.Int)
			}
			gas.Add(gas, v)
		}
	}

	tool := firstNonEmpty(resp.ToolDetails.Key, resp.Tool, name)
	refreshReq := req
	plan := &quotes.BridgePlan{
		Tool:        tool,
		DestChainID: req.DestChainID,
		Tx:          tx,
		Refresh: func(ctx context.Context, from common.Address) (quotes.BridgeTransaction, error) {
			fresh, err := c.fetch(ctx, refreshReq, from.Hex(), slippage)
			if err != nil {
				return quotes.BridgeTransaction{}, err
			}
			return transactionFrom(fresh, refreshReq.ChainID)
		},
	}
	return &quotes.Quote{
		Provider:            name,
		Kind:                quotes.KindBridge,
		ChainID:             req.ChainID,
		DestChainID:         req.DestChainID,
		SellToken:           req.Sell,
		BuyToken:            req.Buy,
		SellAmount:          new(big.Int).Set(req.Amount),
		BuyAmountBeforeFees: before,
		BuyAmountAfterFees:  toAmount,
		NetworkFee:          gas,
		SlippageBps:         slippage,
		Spender:             spender,
		CreatedAt:           c.now().UTC(),
		Plan:                plan,
	}, nil
}

func (c *Client) fetch(ctx context.Context, req providers.QuoteRequest, sender string, slippageBps int64) (quoteResponse, error) {
	vals := url.Values{}
	vals.Set("fromChain", strconv.FormatInt(req.ChainID, 10))
	vals.Set("toChain", strconv.FormatInt(req.DestChainID, 10))
	vals.Set("fromToken", strings.ToLower(req.Sell.Address))
	vals.Set("toToken", strings.ToLower(req.Buy.Address))
	vals.Set("fromAmount", req.Amount.String())
	vals.Set("slippage", formatSlippage(slippageBps))
	vals.Set("fromAddress", sender)

	var resp quoteResponse
	if _, err := httpx.GetJSON(ctx, c.http, c.baseURL+"/quote?"+vals.Encode(), c.headers(), &resp); err != nil {
		return quoteResponse{}, err
	}
	return resp, nil
}

func (c *Client) headers() map[string]string {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil
	}
	return map[string]string{"x-lifi-api-key": c.apiKey}
}

func transactionFrom(resp quoteResponse, sourceChainID int64) (quotes.BridgeTransaction, error) {
	txReq := resp.TransactionRequest
	if !common.IsHexAddress(txReq.To) || strings.TrimSpace(txReq.Data) == "" {
		return quotes.BridgeTransaction{}, clierr.New(clierr.CodeUnavailable, "lifi quote missing executable transaction payload")
	}
	if txReq.ChainID != 0 && txReq.ChainID != sourceChainID {
		return quotes.BridgeTransaction{}, clierr.New(clierr.CodeUnavailable, "lifi transaction chain does not match source chain")
	}
	value, err := hexToBig(txReq.Value)
	if err != nil {
		return quotes.BridgeTransaction{}, clierr.Wrap(clierr.CodeUnavailable, "parse bridge transaction value", err)
	}
	return quotes.BridgeTransaction{
		To:    common.HexToAddress(txReq.To),
		Data:  common.FromHex(strings.TrimSpace(txReq.Data)),
		Value: value,
	}, nil
}

func formatSlippage(bps int64) string {
	return strconv.FormatFloat(float64(bps)/10000, 'f', 6, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func hexToBig(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return big.NewInt(0), nil
	}
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	if clean == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(clean, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", v)
	}
	return n, nil
}
