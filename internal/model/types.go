package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	Providers []ProviderStatus `json:"providers,omitempty"`
}

type ProviderStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type ProviderInfo struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	RequiresKey   bool     `json:"requires_key"`
	Capabilities  []string `json:"capabilities"`
	KeyEnvVarName string   `json:"key_env_var,omitempty"`
}

type AmountInfo struct {
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
	Decimals        int    `json:"decimals"`
}

// QuoteView is the rendered form of a registered quote.
type QuoteView struct {
	QuoteID       uint64     `json:"quote_id"`
	Provider      string     `json:"provider"`
	Kind          string     `json:"kind"`
	ChainID       int64      `json:"chain_id"`
	DestChainID   int64      `json:"dest_chain_id,omitempty"`
	SellSymbol    string     `json:"sell_symbol"`
	SellToken     string     `json:"sell_token"`
	BuySymbol     string     `json:"buy_symbol"`
	BuyToken      string     `json:"buy_token"`
	InputAmount   AmountInfo `json:"input_amount"`
	OutBeforeFees AmountInfo `json:"estimated_out_before_fees"`
	OutAfterFees  AmountInfo `json:"estimated_out"`
	NetworkFeeWei string     `json:"network_fee_wei,omitempty"`
	SlippageBps   int64      `json:"slippage_bps"`
	Spender       string     `json:"spender,omitempty"`
	Authoritative bool       `json:"authoritative"`
	CreatedAt     string     `json:"created_at"`
}
