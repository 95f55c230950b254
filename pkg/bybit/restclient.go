package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// GetUSDTSymbols fetches the symbols of USDT-quoted pairs in the given
// category, one per base coin.
func (c *RESTClient) GetUSDTSymbols(ctx context.Context, category string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v5/market/instruments-info?category=%s&limit=1000", c.baseURL, category)

	var result InstrumentListResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var symbols []string
	for _, symbol := range result.List {
		if symbol.QuoteCoin == "USDT" && !seen[symbol.BaseCoin] {
			symbols = append(symbols, symbol.Symbol)
			seen[symbol.BaseCoin] = true
		}
	}

	return symbols, nil
}

// GetKlines fetches candles for [start, end) and returns them parsed
// and sorted ascending by start time. Bybit caps one response at 1000
// rows; callers page by narrowing the window.
func (c *RESTClient) GetKlines(ctx context.Context, category, symbol string, meta KlineIntervalMeta,
	start, end time.Time) ([]Kline, error) {
	endpoint := fmt.Sprintf(
		"%s/v5/market/kline?category=%s&symbol=%s&interval=%s&start=%d&end=%d&limit=1000",
		c.baseURL,
		category,
		symbol,
		meta.APIValue,
		start.UnixMilli(),
		end.UnixMilli(),
	)

	var result KlinesResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	// The API returns rows newest first.
	klines := ParseKlineList(meta, result.List)
	sort.Slice(klines, func(i, j int) bool { return klines[i].Start.Before(klines[j].Start) })

	return klines, nil
}

// getJSON performs a GET request and decodes the envelope's result
// payload into out.
func (c *RESTClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	// Execute the HTTP request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	// Check HTTP status code
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bybit error: %s", body)
	}

	var rawResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rawResp.RetCode != 0 {
		return fmt.Errorf("bybit error %d: %s", rawResp.RetCode, rawResp.RetMsg)
	}

	if err := json.Unmarshal(rawResp.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
