package tokens

import (
	"reflect"
	"testing"
)

func TestSymbolCandidates(t *testing.T) {
	tests := []struct {
		chainID int64
		query   string
		want    []string
	}{
		{42161, "eth", []string{"WETH"}},
		{42161, "usdt", []string{"USDT", "USD₮0"}},
		{137, "pol", []string{"WPOL", "WMATIC"}},
		{56, "BNB", []string{"WBNB"}},
		{8453, " dai ", []string{"DAI"}},
	}
	for _, tt := range tests {
		got := symbolCandidates(tt.chainID, tt.query)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("symbolCandidates(%d, %q) = %v, want %v", tt.chainID, tt.query, got, tt.want)
		}
	}
}

func TestPickCanonicalAllFlaggedKeepsFirst(t *testing.T) {
	got := pickCanonical([]Descriptor{
		{Address: "0x01", Name: "USDC (Wormhole)"},
		{Address: "0x02", Name: "Bridged USDC"},
	})
	if got.Address != "0x01" {
		t.Fatalf("expected first discovered, got %s", got.Address)
	}
}

func TestMergeSourcesDropsInvalidEntries(t *testing.T) {
	all, canonical := mergeSources([][]Descriptor{{
		{ChainID: 1, Address: "not-an-address", Symbol: "BAD", Decimals: 18},
		{ChainID: 1, Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}})
	if len(all) != 1 {
		t.Fatalf("expected one valid entry, got %d", len(all))
	}
	d, ok := canonical[chainSymbol{1, "USDC"}]
	if !ok || d.Address != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("unexpected canonical entry: %+v", d)
	}
}
