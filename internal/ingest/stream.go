package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"replaysim/pkg/bybit"
	"replaysim/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Follower keeps the candle store current by consuming the kline
// websocket stream after a backfill, writing only confirmed candles.
type Follower struct {
	backfiller *Backfiller
	ws         *bybit.WSClient
	logger     *zap.Logger
}

func NewFollower(backfiller *Backfiller, ws *bybit.WSClient, logger *zap.Logger) *Follower {
	return &Follower{
		backfiller: backfiller,
		ws:         ws,
		logger:     logger,
	}
}

// Follow subscribes to kline topics for the given symbols and blocks
// reading the stream until ctx is cancelled.
func (f *Follower) Follow(ctx context.Context, symbols []string) error {
	meta, err := bybit.ParseKlineInterval(f.backfiller.cfg.Fetch.Interval)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	topics := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		// "args": []string{"kline.1.BTCUSDT"},
		topics = append(topics, fmt.Sprintf("kline.%s.%s", meta.APIValue, symbol))
	}

	f.ws.SetMessageHandler(f.makeMessageHandler(ctx, meta))
	if err := f.ws.Connect(topics); err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	go f.ws.Listen()
	<-ctx.Done()
	return ctx.Err()
}

// makeMessageHandler returns the websocket callback: filter kline
// topics, parse the payload, and persist confirmed candles with their
// tick runs.
func (f *Follower) makeMessageHandler(ctx context.Context, meta bybit.KlineIntervalMeta) func(msg []byte) {
	return func(msg []byte) {
		var head struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			f.logger.Warn("failed to extract topic", zap.Error(err))
			return
		}
		if !isKlineTopic(head.Topic) {
			return // subscription acks and heartbeats
		}

		var parsed bybit.KlineMessage
		if err := json.Unmarshal(msg, &parsed); err != nil {
			f.logger.Warn("failed to parse kline payload", zap.Error(err))
			return
		}
		symbol := extractSymbolFromTopic(parsed.Topic)
		if symbol == "" {
			f.logger.Warn("unexpected kline topic", zap.String("topic", parsed.Topic))
			return
		}

		for _, d := range parsed.Data {
			if !d.Confirm {
				continue // only finalized candles enter the store
			}
			kline, ok := bybit.ParseStreamKline(meta, d)
			if !ok {
				f.logger.Warn("failed to parse stream kline", zap.String("symbol", symbol))
				continue
			}

			dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
			_, err := f.backfiller.db.InsertCandles(dbCtx, []*postgres.CandleRecord{
				postgres.ToCandleRecord(symbol, kline),
			})
			cancel()
			if err != nil {
				f.logger.Warn("failed to insert streamed candle",
					zap.String("symbol", symbol), zap.Error(err))
				continue
			}

			if err := f.backfiller.EnsureTicks(ctx, symbol, meta, kline); err != nil {
				f.logger.Warn("failed to generate ticks for streamed candle",
					zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}
}

// isKlineTopic returns true if the topic string indicates a kline stream.
func isKlineTopic(topic string) bool {
	return strings.HasPrefix(topic, "kline.")
}

// extractSymbolFromTopic parses the symbol from a topic like "kline.1.BTCUSDT".
func extractSymbolFromTopic(topic string) string {
	parts := strings.Split(topic, ".")
	if len(parts) == 3 {
		return parts[2]
	}
	return ""
}
