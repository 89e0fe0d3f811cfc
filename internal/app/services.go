package app

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ggonzalez94/defi-intents/internal/cache"
	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	"github.com/ggonzalez94/defi-intents/internal/config"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
	"github.com/ggonzalez94/defi-intents/internal/httpx"
	"github.com/ggonzalez94/defi-intents/internal/model"
	"github.com/ggonzalez94/defi-intents/internal/order"
	"github.com/ggonzalez94/defi-intents/internal/providers"
	"github.com/ggonzalez94/defi-intents/internal/providers/lifi"
	"github.com/ggonzalez94/defi-intents/internal/providers/uniswapv3"
	"github.com/ggonzalez94/defi-intents/internal/providers/vault"
	"github.com/ggonzalez94/defi-intents/internal/quotes"
	"github.com/ggonzalez94/defi-intents/internal/registry"
	"github.com/ggonzalez94/defi-intents/internal/tokens"
	"github.com/ggonzalez94/defi-intents/internal/version"
)

// services is everything a command needs past flag parsing. It is built once
// per process, on first use, so metadata commands never dial anything.
type services struct {
	cache     *cache.Store
	pool      *chainctx.Pool
	directory *tokens.Directory
	providers map[quotes.Kind]providers.QuoteProvider
	registry  *quotes.Registry
	clock     *quotes.Clock
	manager   *quotes.Manager
	erc20     *order.ERC20
	orders    *order.Store
}

func newServices(settings config.Settings, logger *logrus.Logger) (*services, error) {
	userAgent := httpx.WithUserAgent(version.CLIName + "/" + version.CLIVersion)
	httpClient := httpx.New(settings.Timeout, settings.Retries, userAgent)
	marketClient := httpx.New(settings.Timeout, settings.Retries, userAgent, httpx.WithRateLimit(settings.MarketDataRPS, 1))

	svc := &services{}
	if settings.CacheEnabled {
		store, err := cache.Open(settings.CachePath, settings.CacheLockPath)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open cache", err)
		}
		svc.cache = store
	}

	svc.pool = chainctx.NewPool(func(chainID int64) (string, error) {
		return registry.ResolveRPCURL(settings.RPCURLs, chainID)
	})

	sources := make([]tokens.ListSource, 0, len(settings.TokenLists)+1)
	for _, url := range settings.TokenLists {
		sources = append(sources, tokens.NewHTTPListSource(url, httpClient, svc.cache, settings.TokenTTL, settings.MaxStale, logger))
	}
	sources = append(sources, tokens.Bootstrap())
	svc.directory = tokens.NewDirectory(tokens.Options{
		Sources:  sources,
		Metadata: tokens.NewCoinGecko(settings.MarketDataURL, settings.MarketDataAPIKey, marketClient),
		Reader:   tokens.NewChainReader(svc.pool.Caller),
		TTL:      settings.TokenTTL,
		Logger:   logger,
	})

	svc.providers = map[quotes.Kind]providers.QuoteProvider{
		quotes.KindSwap:   uniswapv3.New(svc.pool.Caller),
		quotes.KindBridge: lifi.New(httpClient, settings.LiFiURL, settings.LiFiAPIKey),
		quotes.KindStake:  vault.New(svc.pool.Caller),
	}

	svc.registry = quotes.NewRegistry()
	svc.clock = quotes.NewClock()
	svc.manager = quotes.NewManager(svc.registry, svc.clock, settings.QuoteRefresh, logger)

	erc20, err := order.NewERC20(registry.ERC20ABI)
	if err != nil {
		svc.close()
		return nil, clierr.Wrap(clierr.CodeInternal, "load erc20 abi", err)
	}
	svc.erc20 = erc20
	return svc, nil
}

// orderStore opens the order record store on first use.
func (svc *services) orderStore(settings config.Settings) (*order.Store, error) {
	if svc.orders != nil {
		return svc.orders, nil
	}
	store, err := order.OpenStore(settings.OrderStorePath, settings.OrderLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open order store", err)
	}
	svc.orders = store
	return store, nil
}

func (svc *services) provider(kind quotes.Kind) (providers.QuoteProvider, error) {
	p, ok := svc.providers[kind]
	if !ok {
		return nil, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("no provider for %s", kind))
	}
	return p, nil
}

func (svc *services) close() {
	if svc == nil {
		return
	}
	if svc.orders != nil {
		_ = svc.orders.Close()
	}
	if svc.pool != nil {
		svc.pool.Close()
	}
	if svc.cache != nil {
		_ = svc.cache.Close()
	}
}

// providerInfos lists providers without building services.
func providerInfos(settings config.Settings) []model.ProviderInfo {
	items := []model.ProviderInfo{
		uniswapv3.New(nil).Info(),
		lifi.New(nil, settings.LiFiURL, settings.LiFiAPIKey).Info(),
		vault.New(nil).Info(),
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
