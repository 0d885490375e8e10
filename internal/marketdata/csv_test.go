package marketdata

import (
	"errors"
	"strings"
	"testing"
	"time"

	"backtest-lab/internal/domain"
)

func TestReadBars(t *testing.T) {
	input := `date,open,high,low,close,volume
2024-01-02,100,102,99,101,15000
2024-01-03,101,104,100.5,103,18000
`
	bars, err := ReadBars(strings.NewReader(input), "AAPL")
	if err != nil {
		t.Fatalf("ReadBars failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	first := bars[0]
	if first.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", first.Symbol)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Errorf("expected date %s, got %s", want, first.Date)
	}
	if first.High != 102 || first.Low != 99 || first.Close != 101 {
		t.Errorf("unexpected OHLC: %+v", first)
	}
}

func TestReadBars_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"bad date", "date,open,high,low,close,volume\n02/01/2024,100,102,99,101,15000\n"},
		{"bad number", "date,open,high,low,close,volume\n2024-01-02,100,x,99,101,15000\n"},
		{"missing columns", "date,open,high,low,close,volume\n2024-01-02,100,102\n"},
		{"empty file", ""},
		{"high below low", "date,open,high,low,close,volume\n2024-01-02,100,98,99,101,15000\n"},
		{"out of order", "date,open,high,low,close,volume\n2024-01-03,100,102,99,101,15000\n2024-01-02,100,102,99,101,15000\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadBars(strings.NewReader(tc.input), "AAPL"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadSignals(t *testing.T) {
	input := `date,signal,suggested_size,strength,reason
2024-01-02,1,,0.8,fast over slow
2024-01-03,0,,,
2024-01-04,-1,0.5,,take profit
`
	signals, err := ReadSignals(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSignals failed: %v", err)
	}
	if len(signals) != 3 {
		t.Fatalf("expected 3 signals, got %d", len(signals))
	}

	if signals[0].Signal != domain.SignalBuy {
		t.Errorf("expected buy, got %d", signals[0].Signal)
	}
	if signals[0].Strength == nil || *signals[0].Strength != 0.8 {
		t.Errorf("expected strength 0.8, got %v", signals[0].Strength)
	}
	if signals[0].SuggestedPositionSize != nil {
		t.Error("expected nil suggested size on first row")
	}
	if signals[0].TriggerReason != "fast over slow" {
		t.Errorf("unexpected reason %q", signals[0].TriggerReason)
	}

	if signals[1].Signal != domain.SignalHold {
		t.Errorf("expected hold, got %d", signals[1].Signal)
	}

	if signals[2].Signal != domain.SignalSell {
		t.Errorf("expected sell, got %d", signals[2].Signal)
	}
	if signals[2].SuggestedPositionSize == nil || *signals[2].SuggestedPositionSize != 0.5 {
		t.Errorf("expected suggested size 0.5, got %v", signals[2].SuggestedPositionSize)
	}
}

func TestReadSignals_MinimalColumns(t *testing.T) {
	input := "date,signal\n2024-01-02,1\n"
	signals, err := ReadSignals(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSignals failed: %v", err)
	}
	if len(signals) != 1 || signals[0].Signal != domain.SignalBuy {
		t.Fatalf("unexpected signals: %+v", signals)
	}
}

func TestReadSignals_Invalid(t *testing.T) {
	t.Run("unknown signal value", func(t *testing.T) {
		input := "date,signal\n2024-01-02,2\n"
		_, err := ReadSignals(strings.NewReader(input))
		if !errors.Is(err, domain.ErrSignalValue) {
			t.Errorf("expected ErrSignalValue, got %v", err)
		}
	})
	t.Run("negative suggested size", func(t *testing.T) {
		input := "date,signal,suggested_size\n2024-01-02,1,-0.5\n"
		_, err := ReadSignals(strings.NewReader(input))
		if !errors.Is(err, domain.ErrSignalSize) {
			t.Errorf("expected ErrSignalSize, got %v", err)
		}
	})
}
