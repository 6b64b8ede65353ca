// Package price quotes MON in a fiat currency for display next to
// donations.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonadCoinID is MON's CoinGecko id.
const MonadCoinID = "monad"

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Fetcher retrieves token prices from CoinGecko.
type Fetcher struct {
	client   *http.Client
	baseURL  string
	currency string
}

// NewFetcher creates a new price fetcher.
func NewFetcher(currency string) *Fetcher {
	if currency == "" {
		currency = "usd"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  defaultBaseURL,
		currency: strings.ToLower(currency),
	}
}

// Currency is the quote currency, lower case.
func (f *Fetcher) Currency() string { return f.currency }

// Price returns the price of one coin.
func (f *Fetcher) Price(ctx context.Context, coinID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s", f.baseURL, coinID, f.currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetching price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price API returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading price response: %w", err)
	}

	// Response: {"monad":{"usd":0.0412}}
	var raw map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("parsing price response: %w", err)
	}
	p, ok := raw[coinID][f.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("price not available for: %s", coinID)
	}
	return p, nil
}

// Quote values amount coins of coinID, rounded to cents.
func (f *Fetcher) Quote(ctx context.Context, coinID string, amount decimal.Decimal) (decimal.Decimal, error) {
	p, err := f.Price(ctx, coinID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Mul(amount).Round(2), nil
}
