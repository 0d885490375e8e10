package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func makeBar(symbol string, day int, close float64) *domain.Bar {
	return &domain.Bar{
		Symbol: symbol,
		Date:   time.Date(2024, 1, 1+day, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: 1000,
	}
}

func TestBarStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewBarStore()

	bars := []*domain.Bar{
		makeBar("AAPL", 2, 102),
		makeBar("AAPL", 0, 100),
		makeBar("AAPL", 1, 101),
	}
	if err := store.InsertBars(ctx, bars); err != nil {
		t.Fatalf("InsertBars failed: %v", err)
	}

	got, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Date.Before(got[i].Date) {
			t.Errorf("bars not sorted by date ASC at index %d", i)
		}
	}
}

func TestBarStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewBarStore()

	if err := store.InsertBars(ctx, []*domain.Bar{makeBar("AAPL", 0, 100)}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	// Duplicate (symbol, date) fails the whole batch, including the new day.
	batch := []*domain.Bar{makeBar("AAPL", 1, 101), makeBar("AAPL", 0, 99)}
	if err := store.InsertBars(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("failed batch must not partially apply: got %d bars", len(got))
	}
}

func TestBarStore_GetBySymbol_NotFound(t *testing.T) {
	store := NewBarStore()
	if _, err := store.GetBySymbol(context.Background(), "MISSING"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBarStore_GetByDateRange(t *testing.T) {
	ctx := context.Background()
	store := NewBarStore()

	var bars []*domain.Bar
	for day := 0; day < 10; day++ {
		bars = append(bars, makeBar("AAPL", day, 100+float64(day)))
	}
	if err := store.InsertBars(ctx, bars); err != nil {
		t.Fatalf("InsertBars failed: %v", err)
	}

	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	got, err := store.GetByDateRange(ctx, "AAPL", start, end)
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected 4 bars in inclusive range, got %d", len(got))
	}
}

func TestBarStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewBarStore()

	if err := store.InsertBars(ctx, []*domain.Bar{makeBar("AAPL", 0, 100)}); err != nil {
		t.Fatalf("InsertBars failed: %v", err)
	}
	got, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySymbol failed: %v", err)
	}
	got[0].Close = 999

	again, err := store.GetBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("second GetBySymbol failed: %v", err)
	}
	if again[0].Close != 100 {
		t.Errorf("stored bar mutated through returned pointer: close=%f", again[0].Close)
	}
}

func TestBarStore_Symbols(t *testing.T) {
	ctx := context.Background()
	store := NewBarStore()

	for _, symbol := range []string{"MSFT", "AAPL", "GOOG"} {
		if err := store.InsertBars(ctx, []*domain.Bar{makeBar(symbol, 0, 100)}); err != nil {
			t.Fatalf("InsertBars(%s) failed: %v", symbol, err)
		}
	}

	symbols, err := store.Symbols(ctx)
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	want := []string{"AAPL", "GOOG", "MSFT"}
	if len(symbols) != len(want) {
		t.Fatalf("expected %d symbols, got %d", len(want), len(symbols))
	}
	for i := range want {
		if symbols[i] != want[i] {
			t.Errorf("symbol %d: expected %s, got %s", i, want[i], symbols[i])
		}
	}
}
