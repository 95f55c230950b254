package postgres_test

import (
	"context"
	"testing"
	"time"

	"replaysim/internal/replay/ledger"
	"replaysim/pkg/storage/postgres"

	"github.com/google/uuid"
)

// go test -v --run TestTradeLifecycle
func TestTradeLifecycle(t *testing.T) {
	client, err := postgres.NewClient(testConfig().DSN("dev"))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	sessionID := uuid.New()
	if err := client.CreateSession(ctx, &postgres.SessionRecord{
		ID:             sessionID,
		UserID:         "tester",
		Symbol:         "TESTUSDT",
		Interval:       "1m",
		Mode:           "progressive",
		StartDate:      time.Now().UTC(),
		InitialBalance: 10000,
		Balance:        10000,
	}); err != nil {
		t.Fatalf("create session failed: %v", err)
	}

	stop := 49000.0
	tradeID := uuid.New()
	entry := time.Now().UTC().Truncate(time.Second)
	if err := client.InsertTrade(ctx, &postgres.TradeRecord{
		ID:         tradeID,
		SessionID:  sessionID,
		Side:       "BUY",
		EntryPrice: 50000,
		Size:       0.1,
		StopLoss:   &stop,
		EntryTime:  entry,
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	open, err := client.ListOpenTrades(ctx, sessionID)
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != tradeID {
		t.Fatalf("expected the open trade back, got %v", open)
	}

	exit := entry.Add(time.Minute)
	if err := client.CloseTrade(ctx, tradeID, 49000, exit, "stop_loss", -100); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	open, err = client.ListOpenTrades(ctx, sessionID)
	if err != nil {
		t.Fatalf("list open failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("closed trade still listed as open: %v", open)
	}

	trades, err := client.ListTrades(ctx, sessionID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}

	got := trades[0]
	if got.ExitPrice == nil || *got.ExitPrice != 49000 {
		t.Errorf("unexpected exit price: %v", got.ExitPrice)
	}
	if got.ExitReason == nil || *got.ExitReason != "stop_loss" {
		t.Errorf("unexpected exit reason: %v", got.ExitReason)
	}
	if got.Pnl == nil || *got.Pnl != -100 {
		t.Errorf("unexpected pnl: %v", got.Pnl)
	}

	// Closing a trade that was never opened must fail loudly.
	if err := client.CloseTrade(ctx, uuid.New(), 1, exit, "manual", 0); err == nil {
		t.Error("expected error closing unknown trade")
	}
}

func TestTradeRecordToPosition(t *testing.T) {
	stop, target := 49000.0, 51000.0
	entry := time.Now().UTC().Truncate(time.Second)
	rec := postgres.TradeRecord{
		ID:         uuid.New(),
		SessionID:  uuid.New(),
		Side:       "BUY",
		EntryPrice: 50000,
		Size:       0.1,
		StopLoss:   &stop,
		TakeProfit: &target,
		EntryTime:  entry,
	}

	p := rec.ToPosition()
	if p.ID != rec.ID {
		t.Errorf("unexpected id: %v", p.ID)
	}
	if p.Side != ledger.Buy {
		t.Errorf("unexpected side: %v", p.Side)
	}
	if p.EntryPrice != 50000 || p.Size != 0.1 {
		t.Errorf("unexpected entry %v size %v", p.EntryPrice, p.Size)
	}
	if p.StopLoss == nil || *p.StopLoss != stop {
		t.Errorf("unexpected stop: %v", p.StopLoss)
	}
	if p.TakeProfit == nil || *p.TakeProfit != target {
		t.Errorf("unexpected target: %v", p.TakeProfit)
	}
	if !p.EntryTime.Equal(entry) {
		t.Errorf("unexpected entry time: %v", p.EntryTime)
	}
}
