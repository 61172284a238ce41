// Package oracle implements the Price Oracle Client: fetches reward-token
// and quote-asset USD prices from an external HTTP source, caches them for
// 60s, and serves a stale-allowed value up to a 10-minute horizon when the
// upstream is unreachable.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	cacheTTL      = 60 * time.Second
	staleHorizon  = 10 * time.Minute
	requestBudget = 5 * time.Second
	cacheSize     = 64
)

// Quote is a single asset's USD price, as returned by quoteUSD.
type Quote struct {
	Price decimal.Decimal
	AsOf  time.Time
	Stale bool
}

type cacheEntry struct {
	quote     Quote
	fetchedAt time.Time
}

// httpGetter is the subset of *http.Client the oracle needs, letting tests
// substitute a fake transport without starting a real listener.
type httpGetter interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the Price Oracle Client. One Client serves every asset the
// program prices (the reward token, and any quote asset needed for TVL).
// Entries are kept in an expirable LRU, the same caching primitive
// internal/rewards/analytics.go uses for its own snapshot cache; the
// library's TTL is set to the stale horizon as an outer memory bound,
// while the 60s-fresh/10m-stale two-tier policy is decided explicitly
// below since that policy needs its own clock for testing.
type Client struct {
	baseURL string
	http    httpGetter

	cache *lru.LRU[string, cacheEntry]

	now func() time.Time
}

// New constructs a Client against baseURL, an HTTP endpoint returning
// {"price": "...", "lastUpdated": "..."} for a ?asset= query parameter.
func New(baseURL string, httpClient httpGetter) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		cache:   lru.NewLRU[string, cacheEntry](cacheSize, nil, staleHorizon),
		now:     time.Now,
	}
}

type priceResponse struct {
	Price       string    `json:"price"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// QuoteUSD returns asset's current USD price. On a fresh cache hit it
// returns immediately; on a cache miss or expiry it fetches, and on fetch
// failure it falls back to the last known value marked Stale, as long as
// that value is within the 10-minute staleness horizon. Beyond that it
// returns an Unavailable error — callers decide whether stale data is
// acceptable (Analytics may; the Reward Accountant must not).
func (c *Client) QuoteUSD(ctx context.Context, asset string) (Quote, error) {
	now := c.now()

	entry, ok := c.cache.Get(asset)
	if ok && now.Sub(entry.fetchedAt) < cacheTTL {
		return entry.quote, nil
	}

	quote, err := c.fetch(ctx, asset)
	if err == nil {
		c.cache.Add(asset, cacheEntry{quote: quote, fetchedAt: now})
		return quote, nil
	}

	if ok && now.Sub(entry.quote.AsOf) <= staleHorizon {
		stale := entry.quote
		stale.Stale = true
		return stale, nil
	}

	return Quote{}, apperr.NewUnavailable(fmt.Sprintf("price for %s unavailable beyond staleness horizon", asset), err)
}

func (c *Client) fetch(ctx context.Context, asset string) (Quote, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestBudget)
	defer cancel()

	url := fmt.Sprintf("%s?asset=%s", c.baseURL, asset)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, apperr.NewTransient("build price request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Quote{}, apperr.NewTransient("price request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return Quote{}, apperr.NewTransient(fmt.Sprintf("price source returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, apperr.NewPermanent(apperr.ReasonValidation, fmt.Sprintf("price source returned %d", resp.StatusCode))
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Quote{}, apperr.NewTransient("decode price response", err)
	}

	price, err := decimal.NewFromString(parsed.Price)
	if err != nil {
		return Quote{}, apperr.NewTransient("parse price value", err)
	}

	return Quote{Price: price, AsOf: parsed.LastUpdated, Stale: false}, nil
}
