package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
)

type countingSource struct {
	name   string
	tokens []Descriptor
	err    error
	calls  atomic.Int32
}

func (s *countingSource) Name() string { return s.name }

func (s *countingSource) Fetch(ctx context.Context) ([]Descriptor, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return append([]Descriptor(nil), s.tokens...), nil
}

type fakeMetadata struct {
	hits  map[string]MetadataHit
	err   error
	calls atomic.Int32
}

func (m *fakeMetadata) Search(ctx context.Context, symbol string, chainID int64) (MetadataHit, bool, error) {
	m.calls.Add(1)
	if m.err != nil {
		return MetadataHit{}, false, m.err
	}
	hit, ok := m.hits[symbol]
	return hit, ok, nil
}

type fakeReader struct {
	tokens map[string]Descriptor
	err    error
	calls  atomic.Int32
}

func (r *fakeReader) ReadToken(ctx context.Context, chainID int64, address string) (Descriptor, error) {
	r.calls.Add(1)
	if r.err != nil {
		return Descriptor{}, r.err
	}
	d, ok := r.tokens[id.NormalizeAddress(address)]
	if !ok {
		return Descriptor{}, errors.New("call symbol: empty result")
	}
	return d, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const (
	arbUSDC     = "0xaf88d065e77c8cc2239327c5edb3a432268e5831"
	arbUSDCe    = "0xff970a61a04b1ca14834a43f5de4533ebddb5cc8"
	arbUSDT0    = "0xfd086bc7cd5c481dcc9c85ebe478a1c0b69fcbb9"
	arbWETH     = "0x82af49447d8a07e3bd95bd0d56f35241523fbab1"
	arbUnlisted = "0x1111111111111111111111111111111111111111"
)

func TestLookupSymbolFromListsThenCache(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	for i := 0; i < 3; i++ {
		desc, ok, err := dir.Lookup(context.Background(), "usdc", 42161)
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if !ok || desc.Address != arbUSDC || desc.Decimals != 6 {
			t.Fatalf("unexpected descriptor: %+v (found=%v)", desc, ok)
		}
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected a single list fetch, got %d", source.calls.Load())
	}
}

func TestLookupConcurrentCallersShareOneFetch(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbWETH, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := dir.Resolve(context.Background(), "WETH", 42161); err != nil {
				t.Errorf("Resolve failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if source.calls.Load() != 1 {
		t.Fatalf("expected a single list fetch, got %d", source.calls.Load())
	}
}

func TestLookupNativeSymbolResolvesWrapped(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbWETH, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	desc, err := dir.Resolve(context.Background(), "ETH", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Symbol != "WETH" || desc.Address != arbWETH {
		t.Fatalf("expected wrapped ether, got %+v", desc)
	}
}

func TestLookupChainSynonym(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDT0, Symbol: "USD₮0", Name: "USD₮0", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	desc, err := dir.Resolve(context.Background(), "USDT", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Address != arbUSDT0 {
		t.Fatalf("expected USD₮0 via synonym, got %+v", desc)
	}
}

func TestLookupPrefersNonVariantEntry(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDCe, Symbol: "USDC", Name: "Bridged USDC", Decimals: 6},
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	desc, err := dir.Resolve(context.Background(), "USDC", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Address != arbUSDC {
		t.Fatalf("expected native USDC over bridged variant, got %+v", desc)
	}
}

func TestLookupEarlierSourceWins(t *testing.T) {
	first := &countingSource{name: "first", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	second := &countingSource{name: "second", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 18},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{first, second}})

	desc, err := dir.Resolve(context.Background(), "USDC", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Decimals != 6 {
		t.Fatalf("expected first source decimals, got %d", desc.Decimals)
	}
}

func TestLookupFailingSourceDoesNotBlockOthers(t *testing.T) {
	broken := &countingSource{name: "broken", err: errors.New("connection refused")}
	good := &countingSource{name: "good", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{broken, good}})

	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
}

func TestLookupFallsBackToMetadata(t *testing.T) {
	source := &countingSource{name: "primary"}
	metadata := &fakeMetadata{hits: map[string]MetadataHit{
		"PEPE": {Address: arbUnlisted, Symbol: "PEPE", Name: "Pepe", Decimals: 18, HasDecimals: true},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}, Metadata: metadata})

	desc, err := dir.Resolve(context.Background(), "pepe", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Address != arbUnlisted || desc.Decimals != 18 {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if _, err := dir.Resolve(context.Background(), "PEPE", 42161); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if metadata.calls.Load() != 1 {
		t.Fatalf("expected metadata result to be cached, got %d searches", metadata.calls.Load())
	}
}

func TestLookupMetadataMissingDecimalsReadsChain(t *testing.T) {
	metadata := &fakeMetadata{hits: map[string]MetadataHit{
		"PEPE": {Address: arbUnlisted, Symbol: "PEPE", Name: "Pepe"},
	}}
	reader := &fakeReader{tokens: map[string]Descriptor{
		arbUnlisted: {ChainID: 42161, Address: arbUnlisted, Symbol: "PEPE", Name: "Pepe", Decimals: 9},
	}}
	dir := NewDirectory(Options{Metadata: metadata, Reader: reader})

	desc, err := dir.Resolve(context.Background(), "PEPE", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Decimals != 9 {
		t.Fatalf("expected decimals from chain, got %d", desc.Decimals)
	}
}

func TestLookupMetadataMalformedAddress(t *testing.T) {
	metadata := &fakeMetadata{hits: map[string]MetadataHit{
		"PEPE": {Address: "0xnot-hex", Symbol: "PEPE", Decimals: 18, HasDecimals: true},
	}}
	dir := NewDirectory(Options{Metadata: metadata})

	_, _, err := dir.Lookup(context.Background(), "PEPE", 42161)
	if !clierr.IsKind(err, clierr.KindInvalidAddressFormat) {
		t.Fatalf("expected invalid address format, got %v", err)
	}
}

func TestLookupMetadataErrorIsNotFound(t *testing.T) {
	metadata := &fakeMetadata{err: errors.New("rate limited")}
	dir := NewDirectory(Options{Metadata: metadata})

	_, ok, err := dir.Lookup(context.Background(), "PEPE", 42161)
	if err != nil {
		t.Fatalf("expected not found without error, got %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
	_, err = dir.Resolve(context.Background(), "PEPE", 42161)
	if !clierr.IsKind(err, clierr.KindNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
}

func TestLookupAddressUsesChainOnly(t *testing.T) {
	source := &countingSource{name: "primary"}
	metadata := &fakeMetadata{}
	reader := &fakeReader{tokens: map[string]Descriptor{
		arbUnlisted: {ChainID: 42161, Address: arbUnlisted, Symbol: "ABC", Name: "Abc", Decimals: 8},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}, Metadata: metadata, Reader: reader})

	desc, err := dir.Resolve(context.Background(), "0x1111111111111111111111111111111111111111", 42161)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Symbol != "ABC" || desc.Decimals != 8 {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if source.calls.Load() != 0 || metadata.calls.Load() != 0 {
		t.Fatalf("address lookups must not consult lists or metadata (lists=%d metadata=%d)", source.calls.Load(), metadata.calls.Load())
	}

	if _, err := dir.Resolve(context.Background(), arbUnlisted, 42161); err != nil {
		t.Fatalf("cached Resolve failed: %v", err)
	}
	if reader.calls.Load() != 1 {
		t.Fatalf("expected address result cached, got %d chain reads", reader.calls.Load())
	}
	if _, err := dir.Resolve(context.Background(), "abc", 42161); !clierr.IsKind(err, clierr.KindNotFound) {
		t.Fatalf("expected address result to stay out of symbol lookups, got %v", err)
	}
}

func TestLookupAddressDoesNotClaimListedSymbol(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	reader := &fakeReader{tokens: map[string]Descriptor{
		arbUnlisted: {ChainID: 42161, Address: arbUnlisted, Symbol: "USDC", Name: "Fake Coin", Decimals: 18},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}, Reader: reader})

	if _, err := dir.Resolve(context.Background(), arbUnlisted, 42161); err != nil {
		t.Fatalf("address Resolve failed: %v", err)
	}
	desc, err := dir.Resolve(context.Background(), "USDC", 42161)
	if err != nil {
		t.Fatalf("symbol Resolve failed: %v", err)
	}
	if desc.Address != arbUSDC || desc.Decimals != 6 {
		t.Fatalf("expected listed USDC, got %+v", desc)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected lists to be fetched once, got %d", source.calls.Load())
	}
}

func TestListPickReplacesEarlierMetadataWriteBack(t *testing.T) {
	source := &countingSource{name: "primary", err: errors.New("list host down")}
	metadata := &fakeMetadata{hits: map[string]MetadataHit{
		"USDC": {Address: arbUnlisted, Symbol: "USDC", Name: "Bridged USDC", Decimals: 6, HasDecimals: true},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}, Metadata: metadata})

	first, err := dir.Resolve(context.Background(), "USDC", 42161)
	if err != nil || first.Address != arbUnlisted {
		t.Fatalf("expected metadata result while lists are down, got %+v err=%v", first, err)
	}

	source.err = nil
	source.tokens = []Descriptor{{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6}}
	if err := dir.loadLists(context.Background()); err != nil {
		t.Fatalf("loadLists failed: %v", err)
	}
	desc, err := dir.Resolve(context.Background(), "USDC", 42161)
	if err != nil || desc.Address != arbUSDC {
		t.Fatalf("expected list pick to replace the metadata write-back, got %+v err=%v", desc, err)
	}
}

func TestLookupAddressFailures(t *testing.T) {
	dir := NewDirectory(Options{Reader: &fakeReader{err: errors.New("dial tcp: refused")}})

	_, _, err := dir.Lookup(context.Background(), "0x11111111111111111111111111111111111111zz", 42161)
	if !clierr.IsKind(err, clierr.KindInvalidAddressFormat) {
		t.Fatalf("expected invalid address format, got %v", err)
	}

	_, _, err = dir.Lookup(context.Background(), arbUnlisted, 42161)
	if !clierr.IsKind(err, clierr.KindAddressLookupFailed) {
		t.Fatalf("expected address lookup failed, got %v", err)
	}
	if !clierr.KindOf(err).Retryable() {
		t.Fatal("expected address lookup failure to be retryable")
	}
}

func TestLookupNativePlaceholderAddress(t *testing.T) {
	dir := NewDirectory(Options{})
	desc, err := dir.Resolve(context.Background(), id.NativeTokenAddress, 137)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !desc.IsNative() || desc.Symbol != "POL" || desc.Decimals != 18 {
		t.Fatalf("unexpected native descriptor: %+v", desc)
	}
}

func TestLookupRejectsEmptyQuery(t *testing.T) {
	dir := NewDirectory(Options{})
	if _, _, err := dir.Lookup(context.Background(), "  ", 1); clierr.ExitCode(err) != int(clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestCacheExpiresWholesaleAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}, TTL: time.Hour, Now: clock.Now})

	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	clock.Advance(30 * time.Minute)
	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected cached result inside ttl, got %d fetches", source.calls.Load())
	}

	clock.Advance(31 * time.Minute)
	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if source.calls.Load() != 2 {
		t.Fatalf("expected refetch after ttl, got %d fetches", source.calls.Load())
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	source := &countingSource{name: "primary", tokens: []Descriptor{
		{ChainID: 42161, Address: arbUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}}
	dir := NewDirectory(Options{Sources: []ListSource{source}})

	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	dir.Invalidate()
	if _, err := dir.Resolve(context.Background(), "USDC", 42161); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if source.calls.Load() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d fetches", source.calls.Load())
	}
}

func TestBootstrapResolvesMajorTokens(t *testing.T) {
	dir := NewDirectory(Options{Sources: []ListSource{Bootstrap()}})
	desc, err := dir.Resolve(context.Background(), "usdc", 8453)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if desc.Address != "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913" {
		t.Fatalf("unexpected base usdc: %s", desc.Address)
	}
}
