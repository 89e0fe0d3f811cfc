package tokens

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/defi-intents/internal/httpx"
)

func TestCoinGeckoSearchPicksRankedContract(t *testing.T) {
	var sawKey bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-cg-demo-api-key") == "demo" {
			sawKey = true
		}
		switch {
		case r.URL.Path == "/search":
			_, _ = w.Write([]byte(`{"coins":[
				{"id":"pepe-fork","symbol":"PEPE","name":"Pepe Fork","market_cap_rank":null},
				{"id":"pepe","symbol":"PEPE","name":"Pepe","market_cap_rank":40},
				{"id":"pepecoin","symbol":"PEPECOIN","name":"PepeCoin","market_cap_rank":10}
			]}`))
		case r.URL.Path == "/coins/pepe":
			_, _ = w.Write([]byte(`{"symbol":"pepe","name":"Pepe","detail_platforms":{
				"arbitrum-one":{"decimal_place":18,"contract_address":"0x25d887ce7a35172c62febfd67a1856f20faebb00"}
			}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "demo", httpx.New(2*time.Second, 0))
	hit, ok, err := cg.Search(context.Background(), "pepe", 42161)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Address != "0x25d887ce7a35172c62febfd67a1856f20faebb00" || hit.Symbol != "PEPE" {
		t.Fatalf("unexpected hit: %+v", hit)
	}
	if !hit.HasDecimals || hit.Decimals != 18 {
		t.Fatalf("expected decimals from platform detail, got %+v", hit)
	}
	if !sawKey {
		t.Fatal("expected api key header")
	}
}

func TestCoinGeckoSearchNoPlatformContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/coins/") {
			_, _ = w.Write([]byte(`{"symbol":"abc","name":"Abc","detail_platforms":{"ethereum":{"decimal_place":18,"contract_address":"0x1111111111111111111111111111111111111111"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"coins":[{"id":"abc","symbol":"ABC","name":"Abc","market_cap_rank":5}]}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", httpx.New(2*time.Second, 0))
	_, ok, err := cg.Search(context.Background(), "ABC", 8453)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if ok {
		t.Fatal("expected no hit on a chain without a contract")
	}
}

func TestCoinGeckoUnknownChainSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, "", httpx.New(2*time.Second, 0))
	if _, ok, err := cg.Search(context.Background(), "ABC", 999999); err != nil || ok {
		t.Fatalf("expected silent miss, got ok=%v err=%v", ok, err)
	}
	if called {
		t.Fatal("expected no request for unmapped chain")
	}
}
