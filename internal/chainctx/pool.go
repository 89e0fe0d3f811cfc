package chainctx

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

// URLResolver maps a chain id to its RPC endpoint.
type URLResolver func(chainID int64) (string, error)

// Pool keeps one RPC connection per endpoint and shares it across callers.
type Pool struct {
	resolve URLResolver
	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewPool(resolve URLResolver) *Pool {
	return &Pool{resolve: resolve, clients: map[string]*ethclient.Client{}}
}

// Client dials (or reuses) the endpoint for chainID.
func (p *Pool) Client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	url, err := p.resolve(chainID)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, fmt.Sprintf("resolve rpc for chain %d", chainID), err)
	}
	return p.dial(ctx, url)
}

// Caller adapts Client to the contract-caller lookups used by token and quote readers.
func (p *Pool) Caller(ctx context.Context, chainID int64) (ethereum.ContractCaller, error) {
	client, err := p.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (p *Pool) dial(ctx context.Context, url string) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[url]; ok {
		return client, nil
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, clierr.WrapKind(clierr.KindClientUnavailable, "connect rpc", err)
	}
	p.clients[url] = client
	return client, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, client := range p.clients {
		client.Close()
		delete(p.clients, url)
	}
}
