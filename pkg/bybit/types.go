package bybit

import "encoding/json"

// Response represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type Response struct {
	RetCode    int                    `json:"retCode"`    // 0 means success; non-zero indicates an error code
	RetMsg     string                 `json:"retMsg"`     // Human-readable message describing the result or error
	Result     json.RawMessage        `json:"result"`     // Delay decoding // Main response payload (varies per endpoint)
	RetExtInfo map[string]interface{} `json:"retExtInfo"` // Optional extra info (e.g. rate limits, error hints)
	Time       int64                  `json:"time"`       // Server timestamp (in milliseconds since epoch)
}

type InstrumentListResponse struct {
	Category       string `json:"category"` // e.g., "linear", "spot"
	NextPageCursor string `json:"nextPageCursor"`
	List           []struct {
		Symbol    string `json:"symbol"`    // e.g., "BTCUSDT"
		BaseCoin  string `json:"baseCoin"`  // e.g., "BTC"
		QuoteCoin string `json:"quoteCoin"` // e.g., "USDT"
		// ... extra
	} `json:"list"`
}

type KlinesResponse struct {
	Category       string     `json:"category"` // e.g., "linear", "spot"
	NextPageCursor string     `json:"nextPageCursor"`
	List           [][]string `json:"list"`
}

// StreamKline is one candlestick entry of a websocket kline message.
// Prices arrive as strings on the wire.
type StreamKline struct {
	Start     int64  `json:"start"`     // Start time of the kline (in milliseconds since epoch)
	End       int64  `json:"end"`       // End time of the kline (in milliseconds since epoch)
	Interval  string `json:"interval"`  // Interval code (e.g., "1", "5", "15")
	Open      string `json:"open"`      // Opening price
	Close     string `json:"close"`     // Closing price
	High      string `json:"high"`      // Highest price during the interval
	Low       string `json:"low"`       // Lowest price during the interval
	Volume    string `json:"volume"`    // Trade volume (number of units traded)
	Turnover  string `json:"turnover"`  // Total traded value (usually in USD)
	Confirm   bool   `json:"confirm"`   // Whether the kline is finalized (true when the interval closes)
	Timestamp int64  `json:"timestamp"` // Time when the event was generated (in milliseconds since epoch)
}

// KlineMessage is a websocket message carrying kline data, e.g. for
// topic "kline.1.BTCUSDT".
type KlineMessage struct {
	Topic string        `json:"topic"`
	Data  []StreamKline `json:"data"`
	Ts    int64         `json:"ts"`
	Type  string        `json:"type"` // "snapshot" or "delta"
}
