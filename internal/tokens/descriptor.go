package tokens

import (
	"strings"

	"github.com/ggonzalez94/defi-intents/internal/id"
)

// Descriptor is the canonical identity of a token on one chain.
type Descriptor struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

func (d Descriptor) IsNative() bool {
	return id.IsNativeAddress(d.Address)
}

func (d Descriptor) valid() bool {
	return d.ChainID > 0 && id.IsEVMAddress(d.Address) && strings.TrimSpace(d.Symbol) != "" && d.Decimals >= 0 && d.Decimals <= 255
}

func (d Descriptor) normalized() Descriptor {
	d.Address = id.NormalizeAddress(d.Address)
	d.Symbol = strings.TrimSpace(d.Symbol)
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		d.Name = d.Symbol
	}
	return d
}

// Native describes the chain's gas token using the placeholder address.
func Native(chain id.Chain) Descriptor {
	return Descriptor{
		ChainID:  chain.ID,
		Address:  id.NativeTokenAddress,
		Symbol:   chain.Native,
		Name:     chain.Native,
		Decimals: 18,
	}
}

func symbolKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
