package price

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// fixedTransport: replaces the HTTP client without needing a real server.
// ---------------------------------------------------------------------------

type fixedTransport struct {
	body string
	code int
	err  error
}

func (ft *fixedTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	if ft.err != nil {
		return nil, ft.err
	}
	return &http.Response{
		StatusCode: ft.code,
		Status:     http.StatusText(ft.code),
		Body:       io.NopCloser(strings.NewReader(ft.body)),
		Header:     make(http.Header),
	}, nil
}

func newMockFetcher(body string, code int) *Fetcher {
	f := NewFetcher("usd")
	f.client = &http.Client{Transport: &fixedTransport{body: body, code: code}}
	return f
}

func TestNewFetcherDefaultCurrency(t *testing.T) {
	assert.Equal(t, "usd", NewFetcher("").Currency())
}

func TestNewFetcherCustomCurrency(t *testing.T) {
	assert.Equal(t, "eur", NewFetcher("EUR").Currency(), "currency must be lowercased")
}

func TestPrice(t *testing.T) {
	f := newMockFetcher(`{"monad":{"usd":0.0412}}`, http.StatusOK)
	p, err := f.Price(context.Background(), MonadCoinID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.0412").Equal(p))
}

func TestPriceMissingCoin(t *testing.T) {
	f := newMockFetcher(`{}`, http.StatusOK)
	_, err := f.Price(context.Background(), MonadCoinID)
	assert.ErrorContains(t, err, "price not available")
}

func TestPriceOtherCurrencyMissing(t *testing.T) {
	f := newMockFetcher(`{"monad":{"eur":0.04}}`, http.StatusOK)
	_, err := f.Price(context.Background(), MonadCoinID)
	assert.Error(t, err)
}

func TestPriceBadJSON(t *testing.T) {
	f := newMockFetcher(`not json`, http.StatusOK)
	_, err := f.Price(context.Background(), MonadCoinID)
	assert.ErrorContains(t, err, "parsing price response")
}

func TestPriceHTTPError(t *testing.T) {
	f := newMockFetcher(`{"status":{"error_code":429}}`, http.StatusTooManyRequests)
	_, err := f.Price(context.Background(), MonadCoinID)
	assert.Error(t, err)
}

func TestPriceTransportError(t *testing.T) {
	f := NewFetcher("usd")
	f.client = &http.Client{Transport: &fixedTransport{err: errors.New("connection refused")}}
	_, err := f.Price(context.Background(), MonadCoinID)
	assert.ErrorContains(t, err, "fetching price")
}

func TestQuoteRoundsToCents(t *testing.T) {
	f := newMockFetcher(`{"monad":{"usd":0.04126}}`, http.StatusOK)
	v, err := f.Quote(context.Background(), MonadCoinID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, "0.41", v.StringFixed(2))
}

func TestPriceRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "monad", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"monad":{"usd":1.5}}`))
	}))
	defer srv.Close()

	f := NewFetcher("usd")
	f.baseURL = srv.URL
	p, err := f.Price(context.Background(), MonadCoinID)
	require.NoError(t, err)
	assert.Equal(t, "1.5", p.String())
}
