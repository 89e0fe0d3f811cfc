package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
)

// Intent is one parsed trading instruction. Chain fields are zero when the
// line did not name them; callers fill in the active chain.
type Intent struct {
	Kind        quotes.Kind `json:"kind"`
	Amount      string      `json:"amount"`
	Sell        string      `json:"sell"`
	Buy         string      `json:"buy,omitempty"`
	ChainID     int64       `json:"chain_id,omitempty"`
	DestChainID int64       `json:"dest_chain_id,omitempty"`
	// Target is the vault for stakes.
	Target      string `json:"target,omitempty"`
	SlippageBps int64  `json:"slippage_bps,omitempty"`
}

const (
	amountExpr = `(?P<amount>[0-9]+(?:\.[0-9]+)?)`
	tokenExpr  = `([A-Za-z0-9.₮$_-]+|0x[0-9A-Za-z]+)`
	chainExpr  = `([A-Za-z0-9:-]+)`
	tailExpr   = `(?:\s+with\s+(?P<slip>[0-9]+(?:\.[0-9]+)?)\s*(?P<unit>%|bps)\s+slippage)?\s*$`
)

var (
	swapPattern = regexp.MustCompile(`(?i)^\s*(?:swap|trade|sell)\s+` + amountExpr + `\s+(?P<sell>` + tokenExpr + `)\s+(?:to|for|into)\s+(?P<buy>` + tokenExpr + `)(?:\s+on\s+(?P<chain>` + chainExpr + `))?` + tailExpr)
	bridgePattern = regexp.MustCompile(`(?i)^\s*(?:bridge|send)\s+` + amountExpr + `\s+(?P<sell>` + tokenExpr + `)(?:\s+from\s+(?P<chain>` + chainExpr + `))?\s+to\s+(?P<dest>` + chainExpr + `)(?:\s+as\s+(?P<buy>` + tokenExpr + `))?` + tailExpr)
	stakePattern  = regexp.MustCompile(`(?i)^\s*(?:stake|deposit)\s+` + amountExpr + `\s+(?P<sell>` + tokenExpr + `)\s+(?:in|into)\s+(?P<target>0x[0-9A-Za-z]+)(?:\s+on\s+(?P<chain>` + chainExpr + `))?\s*$`)
)

// Parse reads lines such as
//
//	swap 10 USDC to WETH on arbitrum
//	bridge 5 USDC from arbitrum to base
//	stake 100 USDC into 0x… on base
func Parse(line string) (Intent, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Intent{}, clierr.New(clierr.CodeUsage, "empty instruction")
	}
	if m := match(swapPattern, line); m != nil {
		return build(quotes.KindSwap, m)
	}
	if m := match(bridgePattern, line); m != nil {
		in, err := build(quotes.KindBridge, m)
		if err != nil {
			return Intent{}, err
		}
		if in.Buy == "" {
			in.Buy = in.Sell
		}
		if in.ChainID != 0 && in.ChainID == in.DestChainID {
			return Intent{}, clierr.New(clierr.CodeUsage, "bridge source and destination chains must differ")
		}
		return in, nil
	}
	if m := match(stakePattern, line); m != nil {
		return build(quotes.KindStake, m)
	}
	return Intent{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("could not understand %q; try \"swap 10 USDC to WETH on arbitrum\"", line))
}

func match(re *regexp.Regexp, line string) map[string]string {
	sub := re.FindStringSubmatch(line)
	if sub == nil {
		return nil
	}
	out := map[string]string{}
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = sub[i]
		}
	}
	return out
}

func build(kind quotes.Kind, m map[string]string) (Intent, error) {
	in := Intent{
		Kind:   kind,
		Amount: m["amount"],
		Sell:   m["sell"],
		Buy:    m["buy"],
		Target: m["target"],
	}
	var err error
	if in.ChainID, err = chainID(m["chain"]); err != nil {
		return Intent{}, err
	}
	if in.DestChainID, err = chainID(m["dest"]); err != nil {
		return Intent{}, err
	}
	if in.Target != "" && !id.IsEVMAddress(in.Target) {
		return Intent{}, clierr.NewKind(clierr.KindInvalidAddressFormat, fmt.Sprintf("invalid vault address %q", in.Target))
	}
	if in.SlippageBps, err = slippage(m["slip"], m["unit"]); err != nil {
		return Intent{}, err
	}
	return in, nil
}

func chainID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	chain, err := id.ParseChain(raw)
	if err != nil {
		return 0, err
	}
	return chain.ID, nil
}

func slippage(raw, unit string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUsage, "parse slippage", err)
	}
	if unit == "%" {
		v *= 100
	}
	bps := int64(v + 0.5)
	if bps <= 0 || bps >= 10_000 {
		return 0, clierr.New(clierr.CodeUsage, "slippage must be between 1 and 9999 bps")
	}
	return bps, nil
}
