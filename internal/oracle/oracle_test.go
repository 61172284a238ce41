package oracle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHTTP struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

func (f *fakeHTTP) Do(req *http.Request) (*http.Response, error) {
	r := f.responses[f.calls]
	f.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}, nil
}

func TestQuoteUSDFreshFetch(t *testing.T) {
	fh := &fakeHTTP{responses: []fakeResponse{
		{status: 200, body: `{"price":"1.25","lastUpdated":"2026-07-31T00:00:00Z"}`},
	}}
	c := New("http://oracle.test/price", fh)

	q, err := c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)
	assert.Equal(t, "1.25", q.Price.String())
	assert.False(t, q.Stale)
	assert.Equal(t, 1, fh.calls)
}

func TestQuoteUSDCacheHit(t *testing.T) {
	fh := &fakeHTTP{responses: []fakeResponse{
		{status: 200, body: `{"price":"2.00","lastUpdated":"2026-07-31T00:00:00Z"}`},
	}}
	c := New("http://oracle.test/price", fh)

	_, err := c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)
	_, err = c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)

	assert.Equal(t, 1, fh.calls, "second call within TTL must not hit the network")
}

func TestQuoteUSDFallsBackToStaleWithinHorizon(t *testing.T) {
	fh := &fakeHTTP{responses: []fakeResponse{
		{status: 200, body: `{"price":"3.00","lastUpdated":"2026-07-31T00:00:00Z"}`},
		{err: errors.New("connection refused")},
	}}
	c := New("http://oracle.test/price", fh)
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tick := base
	c.now = func() time.Time { return tick }

	_, err := c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)

	tick = base.Add(90 * time.Second) // past the 60s TTL, triggers a refetch
	q, err := c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)
	assert.True(t, q.Stale)
	assert.Equal(t, "3", q.Price.String())
}

func TestQuoteUSDUnavailableBeyondHorizon(t *testing.T) {
	fh := &fakeHTTP{responses: []fakeResponse{
		{status: 200, body: `{"price":"3.00","lastUpdated":"2026-07-31T00:00:00Z"}`},
		{err: errors.New("connection refused")},
	}}
	c := New("http://oracle.test/price", fh)
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	tick := base
	c.now = func() time.Time { return tick }

	_, err := c.QuoteUSD(context.Background(), "REWARD")
	require.NoError(t, err)

	tick = base.Add(11 * time.Minute) // past the cache TTL and the 10-minute stale horizon
	_, err = c.QuoteUSD(context.Background(), "REWARD")
	require.Error(t, err)
	assert.True(t, apperr.IsUnavailable(err))
}
