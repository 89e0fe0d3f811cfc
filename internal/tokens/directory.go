package tokens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/id"
	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

type Options struct {
	Sources  []ListSource
	Metadata MetadataProvider
	Reader   ContractReader
	TTL      time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Directory resolves symbols or contract addresses to canonical descriptors.
//
// Symbol lookups consult the in-memory cache, then the merged list sources, then
// the metadata provider. Address lookups go straight to the chain.
type Directory struct {
	sources  []ListSource
	metadata MetadataProvider
	reader   ContractReader
	cache    *memoryCache
	group    singleflight.Group
	log      *logrus.Entry
}

func NewDirectory(opts Options) *Directory {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Directory{
		sources:  opts.Sources,
		metadata: opts.Metadata,
		reader:   opts.Reader,
		cache:    newMemoryCache(opts.TTL, opts.Now),
		log:      opts.Logger.WithField("component", "token_directory"),
	}
}

// Lookup returns found=false with a nil error when nothing matches; the caller
// should ask the user for a contract address.
func (d *Directory) Lookup(ctx context.Context, query string, chainID int64) (Descriptor, bool, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Descriptor{}, false, clierr.New(clierr.CodeUsage, "token query is required")
	}
	if chainID <= 0 {
		return Descriptor{}, false, clierr.New(clierr.CodeUsage, "chain id is required")
	}
	if id.LooksLikeAddress(q) {
		desc, err := d.lookupAddress(ctx, q, chainID)
		if err != nil {
			return Descriptor{}, false, err
		}
		return desc, true, nil
	}
	return d.lookupSymbol(ctx, q, chainID)
}

// Resolve is Lookup with a not-found result reported as a NotFound error.
func (d *Directory) Resolve(ctx context.Context, query string, chainID int64) (Descriptor, error) {
	desc, ok, err := d.Lookup(ctx, query, chainID)
	if err != nil {
		return Descriptor{}, err
	}
	if !ok {
		return Descriptor{}, clierr.NewKind(clierr.KindNotFound, fmt.Sprintf("token %s not found on %s", strings.TrimSpace(query), id.ChainByID(chainID).Name))
	}
	return desc, nil
}

// Invalidate drops every cached resolution.
func (d *Directory) Invalidate() {
	d.cache.invalidate()
}

func (d *Directory) lookupAddress(ctx context.Context, raw string, chainID int64) (Descriptor, error) {
	if !id.IsEVMAddress(raw) {
		return Descriptor{}, clierr.NewKind(clierr.KindInvalidAddressFormat, fmt.Sprintf("%s is not a valid contract address", raw))
	}
	addr := id.NormalizeAddress(raw)
	if id.IsNativeAddress(addr) {
		metrics.TokenResolutions.WithLabelValues("native").Inc()
		return Native(id.ChainByID(chainID)), nil
	}
	if desc, ok := d.cache.address(chainID, addr); ok {
		metrics.TokenResolutions.WithLabelValues("cache").Inc()
		return desc, nil
	}
	if d.reader == nil {
		return Descriptor{}, clierr.NewKind(clierr.KindAddressLookupFailed, "no chain reader configured")
	}
	desc, err := d.reader.ReadToken(ctx, chainID, addr)
	if err != nil {
		metrics.TokenResolutions.WithLabelValues("chain_error").Inc()
		return Descriptor{}, clierr.WrapKind(clierr.KindAddressLookupFailed, fmt.Sprintf("read token %s on chain %d", addr, chainID), err)
	}
	d.cache.putAddress(desc)
	metrics.TokenResolutions.WithLabelValues("chain").Inc()
	return desc, nil
}

func (d *Directory) lookupSymbol(ctx context.Context, query string, chainID int64) (Descriptor, bool, error) {
	candidates := symbolCandidates(chainID, query)
	if desc, ok := d.cachedSymbol(chainID, candidates); ok {
		metrics.TokenResolutions.WithLabelValues("cache").Inc()
		return desc, true, nil
	}

	if !d.cache.loaded() {
		if err := d.loadLists(ctx); err != nil {
			d.log.WithError(err).Warn("token lists unavailable")
		}
		if desc, ok := d.cachedSymbol(chainID, candidates); ok {
			metrics.TokenResolutions.WithLabelValues("list").Inc()
			return desc, true, nil
		}
	}

	if d.metadata != nil {
		for _, candidate := range candidates {
			desc, ok, err := d.searchMetadata(ctx, candidate, chainID)
			if err != nil {
				return Descriptor{}, false, err
			}
			if ok {
				d.cache.putSymbol(candidates[0], desc)
				metrics.TokenResolutions.WithLabelValues("metadata").Inc()
				return desc, true, nil
			}
		}
	}

	metrics.TokenResolutions.WithLabelValues("not_found").Inc()
	d.log.WithFields(logrus.Fields{"query": query, "chain_id": chainID}).Debug("token not found")
	return Descriptor{}, false, nil
}

func (d *Directory) cachedSymbol(chainID int64, candidates []string) (Descriptor, bool) {
	for _, candidate := range candidates {
		if desc, ok := d.cache.symbol(chainID, candidate); ok {
			return desc, true
		}
	}
	return Descriptor{}, false
}

// loadLists fetches every source once per cache generation. Concurrent callers share one fetch.
func (d *Directory) loadLists(ctx context.Context) error {
	_, err, _ := d.group.Do("lists", func() (any, error) {
		if d.cache.loaded() {
			return nil, nil
		}
		results := make([][]Descriptor, len(d.sources))
		failures := make([]error, len(d.sources))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, source := range d.sources {
			g.Go(func() error {
				list, err := source.Fetch(gctx)
				if err != nil {
					failures[i] = fmt.Errorf("%s: %w", source.Name(), err)
					return nil
				}
				results[i] = list
				return nil
			})
		}
		_ = g.Wait()

		failed := 0
		for _, err := range failures {
			if err != nil {
				failed++
				d.log.WithError(err).Warn("token list source failed")
			}
		}
		if len(d.sources) > 0 && failed == len(d.sources) {
			return nil, clierr.New(clierr.CodeUnavailable, "all token list sources failed")
		}

		all, canonical := mergeSources(results)
		d.cache.fill(all, canonical)
		d.log.WithFields(logrus.Fields{"tokens": len(all), "sources": len(d.sources), "failed": failed}).Debug("token lists merged")
		return nil, nil
	})
	return err
}

func (d *Directory) searchMetadata(ctx context.Context, symbol string, chainID int64) (Descriptor, bool, error) {
	hit, ok, err := d.metadata.Search(ctx, symbol, chainID)
	if err != nil {
		d.log.WithError(err).WithField("symbol", symbol).Warn("metadata search failed")
		return Descriptor{}, false, nil
	}
	if !ok {
		return Descriptor{}, false, nil
	}
	if !id.IsEVMAddress(hit.Address) {
		return Descriptor{}, false, clierr.NewKind(clierr.KindInvalidAddressFormat,
			fmt.Sprintf("market data returned malformed address %q for %s", hit.Address, symbol))
	}

	desc := Descriptor{
		ChainID:  chainID,
		Address:  hit.Address,
		Symbol:   hit.Symbol,
		Name:     hit.Name,
		Decimals: hit.Decimals,
	}
	if desc.Symbol == "" {
		desc.Symbol = symbol
	}
	if !hit.HasDecimals {
		if d.reader == nil {
			return Descriptor{}, false, clierr.NewKind(clierr.KindAddressLookupFailed, "token decimals unknown and no chain reader configured")
		}
		onchain, err := d.reader.ReadToken(ctx, chainID, hit.Address)
		if err != nil {
			return Descriptor{}, false, clierr.WrapKind(clierr.KindAddressLookupFailed, "read token decimals", err)
		}
		desc.Decimals = onchain.Decimals
	}
	desc = desc.normalized()
	if !desc.valid() {
		return Descriptor{}, false, clierr.NewKind(clierr.KindInvalidAddressFormat, fmt.Sprintf("market data returned an unusable token for %s", symbol))
	}
	return desc, true, nil
}
