package tokens

import "strings"

// Markers in a token name that flag a bridged, legacy or otherwise non-canonical variant.
var variantMarkers = []string{"bridge", "wormhole", "portal", "(old)", "deprecated"}

func isVariant(d Descriptor) bool {
	name := strings.ToLower(d.Name)
	for _, marker := range variantMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// pickCanonical returns the first candidate without a variant marker, else the first discovered.
func pickCanonical(candidates []Descriptor) Descriptor {
	for _, c := range candidates {
		if !isVariant(c) {
			return c
		}
	}
	return candidates[0]
}

type chainSymbol struct {
	chainID int64
	symbol  string
}

// mergeSources flattens source results in priority order, first source wins per (chain, address),
// and picks one canonical descriptor per (chain, symbol).
func mergeSources(results [][]Descriptor) (all []Descriptor, canonical map[chainSymbol]Descriptor) {
	type chainAddress struct {
		chainID int64
		address string
	}
	seen := map[chainAddress]bool{}
	grouped := map[chainSymbol][]Descriptor{}
	var order []chainSymbol

	for _, list := range results {
		for _, d := range list {
			d = d.normalized()
			if !d.valid() {
				continue
			}
			key := chainAddress{d.ChainID, d.Address}
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, d)

			sk := chainSymbol{d.ChainID, symbolKey(d.Symbol)}
			if _, ok := grouped[sk]; !ok {
				order = append(order, sk)
			}
			grouped[sk] = append(grouped[sk], d)
		}
	}

	canonical = make(map[chainSymbol]Descriptor, len(order))
	for _, sk := range order {
		canonical[sk] = pickCanonical(grouped[sk])
	}
	return all, canonical
}
