package tokens

import (
	"github.com/ggonzalez94/defi-intents/internal/id"
)

// Extra spellings tried after the normalized symbol, per chain.
var chainSynonyms = map[int64]map[string][]string{
	42161: {
		"USDT":   {"USD₮0"},
		"USDC.E": {"USDC"},
	},
	10: {
		"USDC.E": {"USDC"},
	},
	137: {
		"POL":    {"WMATIC"},
		"MATIC":  {"WPOL", "WMATIC"},
		"USDC.E": {"USDC"},
	},
	8453: {
		"USDBC": {"USDC"},
	},
}

var nativeNames = map[string]bool{
	"ETH":   true,
	"ETHER": true,
}

// symbolCandidates maps a user symbol to the ordered spellings to look up on chainID.
func symbolCandidates(chainID int64, query string) []string {
	key := symbolKey(query)
	chain := id.ChainByID(chainID)

	primary := key
	if key == symbolKey(chain.Native) || (nativeNames[key] && symbolKey(chain.Native) == "ETH") {
		primary = symbolKey(chain.Wrapped)
	}

	out := []string{primary}
	seen := map[string]bool{primary: true}
	for _, alt := range chainSynonyms[chainID][key] {
		alt = symbolKey(alt)
		if !seen[alt] {
			seen[alt] = true
			out = append(out, alt)
		}
	}
	return out
}
