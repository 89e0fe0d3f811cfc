package registry

type UniswapV3Deployment struct {
	QuoterV2 string
	Router   string
}

// Uniswap V3 QuoterV2 and SwapRouter02 deployments by chain id.
var uniswapV3ByChainID = map[int64]UniswapV3Deployment{
	1:     {QuoterV2: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e", Router: "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"},
	10:    {QuoterV2: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e", Router: "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"},
	137:   {QuoterV2: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e", Router: "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"},
	8453:  {QuoterV2: "0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a", Router: "0x2626664c2603336E57B271c5C0b26F421741e481"},
	42161: {QuoterV2: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e", Router: "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45"},
	167000: {
		QuoterV2: "0xcBa70D57be34aA26557B8E80135a9B7754680aDb",
		Router:   "0x1A0c3a0Cfd1791FAC7798FA2b05208B66aaadfeD",
	},
}

func UniswapV3(chainID int64) (UniswapV3Deployment, bool) {
	d, ok := uniswapV3ByChainID[chainID]
	return d, ok
}

// CoinGecko asset platform ids by chain id.
var marketPlatformByChainID = map[int64]string{
	1:      "ethereum",
	10:     "optimistic-ethereum",
	56:     "binance-smart-chain",
	137:    "polygon-pos",
	8453:   "base",
	42161:  "arbitrum-one",
	43114:  "avalanche",
	167000: "taiko",
}

func MarketPlatform(chainID int64) (string, bool) {
	v, ok := marketPlatformByChainID[chainID]
	return v, ok
}
