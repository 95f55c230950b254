package postgres_test

import (
	"context"
	"testing"
	"time"

	"replaysim/pkg/storage/postgres"
)

// go test -v --run TestCandleRoundTrip
func TestCandleRoundTrip(t *testing.T) {
	client, err := postgres.NewClient(testConfig().DSN("dev"))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Minute)
	records := []*postgres.CandleRecord{
		{
			Symbol:   "TESTUSDT",
			Interval: "1m",
			Start:    base,
			End:      base.Add(time.Minute),
			Open:     100, High: 110, Low: 95, Close: 105,
			Volume: 12.5,
		},
		{
			Symbol:   "TESTUSDT",
			Interval: "1m",
			Start:    base.Add(time.Minute),
			End:      base.Add(2 * time.Minute),
			Open:     105, High: 120, Low: 104, Close: 118,
			Volume: 9.1,
		},
	}

	inserted, err := client.InsertCandles(ctx, records)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("expected 2 inserted rows, got %d", inserted)
	}

	// Re-insert must be a silent no-op on the conflict index.
	inserted, err = client.InsertCandles(ctx, records)
	if err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected duplicate insert to write 0 rows, got %d", inserted)
	}

	got, err := client.GetCandles(ctx, "TESTUSDT", "1m", base, 100, 0)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if !got[0].Start.Before(got[1].Start) {
		t.Error("candles not in ascending start order")
	}
	if got[0].Open != 100 || got[1].Close != 118 {
		t.Errorf("unexpected candle values: %+v", got)
	}

	latest, ok, err := client.LatestCandleStart(ctx, "TESTUSDT", "1m")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a latest candle")
	}
	if !latest.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected latest start: %v", latest)
	}

	_, ok, err = client.LatestCandleStart(ctx, "NOSUCHUSDT", "1m")
	if err != nil {
		t.Fatalf("latest for missing symbol failed: %v", err)
	}
	if ok {
		t.Error("expected no candle for unknown symbol")
	}
}

// go test -v --run TestTickRoundTrip
func TestTickRoundTrip(t *testing.T) {
	client, err := postgres.NewClient(testConfig().DSN("dev"))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	candleStart := time.Now().UTC().Truncate(time.Minute)
	records := []*postgres.TickRecord{
		{Symbol: "TESTUSDT", Interval: "1m", CandleStart: candleStart, TickIndex: 0,
			Time: candleStart, Price: 100, Open: 100, High: 100, Low: 100},
		{Symbol: "TESTUSDT", Interval: "1m", CandleStart: candleStart, TickIndex: 1,
			Time: candleStart.Add(30 * time.Second), Price: 104, Open: 100, High: 104, Low: 100, Final: true},
	}

	if _, err := client.InsertTicks(ctx, records); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	has, err := client.HasTicks(ctx, "TESTUSDT", "1m", candleStart)
	if err != nil {
		t.Fatalf("has failed: %v", err)
	}
	if !has {
		t.Fatal("expected tick run to exist")
	}

	got, err := client.GetTicks(ctx, "TESTUSDT", "1m", candleStart)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(got))
	}
	if got[0].TickIndex != 0 || got[1].TickIndex != 1 {
		t.Error("ticks not in index order")
	}
	if !got[1].Final {
		t.Error("last tick should be final")
	}
}
